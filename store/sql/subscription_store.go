package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-websub/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubscriptionStore persists subscriptions in the push_subscriptions table.
type SubscriptionStore struct {
	db    *bun.DB
	repo  repository.Repository[*subscriptionRecord]
	nowFn func() time.Time
}

func NewSubscriptionStore(db *bun.DB) (*SubscriptionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*subscriptionRecord](db, subscriptionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid subscription repository wiring: %w", err)
		}
	}
	return &SubscriptionStore{
		db:    db,
		repo:  repo,
		nowFn: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SubscriptionStore) FindByID(ctx context.Context, id string) (core.Subscription, bool, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, false, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Subscription{}, false, nil
	}
	record, err := findSubscriptionTx(ctx, s.db, "id", id)
	if err != nil {
		return core.Subscription{}, false, core.PersistenceError("select subscription", err)
	}
	if record == nil {
		return core.Subscription{}, false, nil
	}
	return record.toDomain(), true, nil
}

func (s *SubscriptionStore) FindByTopic(ctx context.Context, topic string) (core.Subscription, bool, error) {
	if s == nil || s.db == nil {
		return core.Subscription{}, false, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return core.Subscription{}, false, nil
	}
	record, err := findSubscriptionTx(ctx, s.db, "topic", topic)
	if err != nil {
		return core.Subscription{}, false, core.PersistenceError("select subscription", err)
	}
	if record == nil {
		return core.Subscription{}, false, nil
	}
	return record.toDomain(), true, nil
}

// List returns every subscription in insertion order.
func (s *SubscriptionStore) List(ctx context.Context) ([]core.Subscription, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	records := make([]*subscriptionRecord, 0)
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at ASC").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, core.PersistenceError("list subscriptions", err)
	}
	return toDomainList(records), nil
}

// Update inserts sub when it has no id and updates the row by id otherwise.
// The topic uniqueness check and the write share one transaction.
func (s *SubscriptionStore) Update(ctx context.Context, sub *core.Subscription) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	if sub == nil {
		return core.BadInputError("sqlstore: subscription is required", nil)
	}
	sub.Topic = strings.TrimSpace(sub.Topic)
	if err := sub.Validate(); err != nil {
		return err
	}
	now := normalizeTime(s.nowFn())

	var out core.Subscription
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		holder, err := findSubscriptionTx(ctx, tx, "topic", sub.Topic)
		if err != nil {
			return err
		}

		if !sub.Persisted() {
			if holder != nil {
				return core.UniquenessError(sub.Topic)
			}
			id, idErr := uuid.NewV7()
			if idErr != nil {
				return idErr
			}
			record := newSubscriptionRecord(*sub)
			record.ID = id.String()
			record.CreatedAt = now
			record.UpdatedAt = now
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if isUniqueViolation(insertErr) {
					return core.UniquenessError(sub.Topic)
				}
				return insertErr
			}
			out = record.toDomain()
			return nil
		}

		existing, err := findSubscriptionTx(ctx, tx, "id", strings.TrimSpace(sub.ID))
		if err != nil {
			return err
		}
		if existing == nil {
			return core.NotFoundError(sub.ID)
		}
		if holder != nil && holder.ID != existing.ID {
			return core.UniquenessError(sub.Topic)
		}

		record := newSubscriptionRecord(*sub)
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		record.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			if isUniqueViolation(updateErr) {
				return core.UniquenessError(sub.Topic)
			}
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.PersistenceError("update subscription", err)
	}
	*sub = out
	return nil
}

// Delete removes the row by id. Unknown or empty ids are a no-op.
func (s *SubscriptionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if _, err := s.db.NewDelete().
		Model((*subscriptionRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx); err != nil {
		return core.PersistenceError("delete subscription", err)
	}
	return nil
}

func (s *SubscriptionStore) ListExpiring(ctx context.Context, before time.Time, limit int) ([]core.Subscription, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: subscription store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.expires IS NOT NULL").
				Where("?TableAlias.expires < ?", before.UTC())
		}),
		repository.OrderBy("expires ASC"),
	}
	if limit > 0 {
		criteria = append(criteria, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, core.PersistenceError("list expiring subscriptions", err)
	}
	return toDomainList(records), nil
}

func findSubscriptionTx(ctx context.Context, db bun.IDB, column string, value string) (*subscriptionRecord, error) {
	record := &subscriptionRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func toDomainList(records []*subscriptionRecord) []core.Subscription {
	out := make([]core.Subscription, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
