package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-websub/core"
)

var (
	_ gocmd.Querier[GetSubscriptionMessage, SubscriptionLookup]        = (*GetSubscriptionQuery)(nil)
	_ gocmd.Querier[GetSubscriptionByTopicMessage, SubscriptionLookup] = (*GetSubscriptionByTopicQuery)(nil)
	_ gocmd.Querier[ListSubscriptionsMessage, []core.Subscription]     = (*ListSubscriptionsQuery)(nil)

	_ SubscriptionReader = (*core.Service)(nil)
)
