package query

import (
	"strings"

	"github.com/goliatone/go-websub/core"
)

const (
	TypeGetSubscription        = "websub.query.subscription.get"
	TypeGetSubscriptionByTopic = "websub.query.subscription.get_by_topic"
	TypeListSubscriptions      = "websub.query.subscription.list"
)

// SubscriptionLookup carries an explicit absent result; a miss is not an error.
type SubscriptionLookup struct {
	Subscription core.Subscription
	Found        bool
}

type GetSubscriptionMessage struct {
	SubscriptionID string
}

func (GetSubscriptionMessage) Type() string { return TypeGetSubscription }

func (m GetSubscriptionMessage) Validate() error {
	if strings.TrimSpace(m.SubscriptionID) == "" {
		return queryValidationError("subscription_id", "subscription id is required")
	}
	return nil
}

type GetSubscriptionByTopicMessage struct {
	Topic string
}

func (GetSubscriptionByTopicMessage) Type() string { return TypeGetSubscriptionByTopic }

func (m GetSubscriptionByTopicMessage) Validate() error {
	if strings.TrimSpace(m.Topic) == "" {
		return queryValidationError("topic", "topic is required")
	}
	return nil
}

type ListSubscriptionsMessage struct{}

func (ListSubscriptionsMessage) Type() string { return TypeListSubscriptions }

func (ListSubscriptionsMessage) Validate() error { return nil }
