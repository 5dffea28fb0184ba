package query

import (
	"context"

	"github.com/goliatone/go-websub/core"
)

type SubscriptionReader interface {
	FindSubscription(ctx context.Context, id string) (core.Subscription, bool, error)
	FindSubscriptionByTopic(ctx context.Context, topic string) (core.Subscription, bool, error)
	ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
}

type GetSubscriptionQuery struct {
	reader SubscriptionReader
}

func NewGetSubscriptionQuery(reader SubscriptionReader) *GetSubscriptionQuery {
	return &GetSubscriptionQuery{reader: reader}
}

func (q *GetSubscriptionQuery) Query(ctx context.Context, msg GetSubscriptionMessage) (SubscriptionLookup, error) {
	if q == nil || q.reader == nil {
		return SubscriptionLookup{}, queryDependencyError("query: subscription reader is required")
	}
	sub, found, err := q.reader.FindSubscription(ctx, msg.SubscriptionID)
	if err != nil {
		return SubscriptionLookup{}, err
	}
	return SubscriptionLookup{Subscription: sub, Found: found}, nil
}

type GetSubscriptionByTopicQuery struct {
	reader SubscriptionReader
}

func NewGetSubscriptionByTopicQuery(reader SubscriptionReader) *GetSubscriptionByTopicQuery {
	return &GetSubscriptionByTopicQuery{reader: reader}
}

func (q *GetSubscriptionByTopicQuery) Query(
	ctx context.Context,
	msg GetSubscriptionByTopicMessage,
) (SubscriptionLookup, error) {
	if q == nil || q.reader == nil {
		return SubscriptionLookup{}, queryDependencyError("query: subscription reader is required")
	}
	sub, found, err := q.reader.FindSubscriptionByTopic(ctx, msg.Topic)
	if err != nil {
		return SubscriptionLookup{}, err
	}
	return SubscriptionLookup{Subscription: sub, Found: found}, nil
}

type ListSubscriptionsQuery struct {
	reader SubscriptionReader
}

func NewListSubscriptionsQuery(reader SubscriptionReader) *ListSubscriptionsQuery {
	return &ListSubscriptionsQuery{reader: reader}
}

func (q *ListSubscriptionsQuery) Query(ctx context.Context, _ ListSubscriptionsMessage) ([]core.Subscription, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: subscription reader is required")
	}
	return q.reader.ListSubscriptions(ctx)
}
