package sqlstore

import (
	"time"

	"github.com/goliatone/go-websub/core"
)

// Timestamps are stored with microsecond precision on both dialects.
const storedTimePrecision = time.Microsecond

func newSubscriptionRecord(sub core.Subscription) *subscriptionRecord {
	record := &subscriptionRecord{
		ID:          sub.ID,
		Topic:       sub.Topic,
		Secret:      sub.Secret,
		Confirmed:   sub.Confirmed,
		Unsubscribe: sub.Unsubscribe,
		CreatedAt:   normalizeTime(sub.CreatedAt),
		UpdatedAt:   normalizeTime(sub.UpdatedAt),
	}
	if sub.HasExpiry() {
		expires := normalizeTime(sub.Expires)
		record.Expires = &expires
	}
	return record
}

func (r *subscriptionRecord) toDomain() core.Subscription {
	if r == nil {
		return core.Subscription{}
	}
	sub := core.Subscription{
		ID:          r.ID,
		Topic:       r.Topic,
		Secret:      r.Secret,
		Confirmed:   r.Confirmed,
		Unsubscribe: r.Unsubscribe,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.Expires != nil {
		sub.Expires = r.Expires.UTC()
	}
	return sub
}

func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC().Truncate(storedTimePrecision)
}
