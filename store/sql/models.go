package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type subscriptionRecord struct {
	bun.BaseModel `bun:"table:push_subscriptions,alias:ps"`

	ID          string     `bun:"id,pk"`
	Topic       string     `bun:"topic,notnull"`
	Secret      string     `bun:"secret,nullzero"`
	Expires     *time.Time `bun:"expires,nullzero"`
	Confirmed   bool       `bun:"confirmed,notnull"`
	Unsubscribe bool       `bun:"unsubscribe,notnull"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
