package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySubscriptionStore keeps subscriptions in process memory, in insertion order.
type MemorySubscriptionStore struct {
	mu      sync.RWMutex
	records []Subscription
	nowFn   func() time.Time
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemorySubscriptionStore) FindByID(_ context.Context, id string) (Subscription, bool, error) {
	if s == nil {
		return Subscription{}, false, fmt.Errorf("core: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Subscription{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index := s.indexByID(id); index >= 0 {
		return s.records[index], true, nil
	}
	return Subscription{}, false, nil
}

func (s *MemorySubscriptionStore) FindByTopic(_ context.Context, topic string) (Subscription, bool, error) {
	if s == nil {
		return Subscription{}, false, fmt.Errorf("core: subscription store is not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Subscription{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index := s.indexByTopic(topic); index >= 0 {
		return s.records[index], true, nil
	}
	return Subscription{}, false, nil
}

func (s *MemorySubscriptionStore) List(context.Context) ([]Subscription, error) {
	if s == nil {
		return nil, fmt.Errorf("core: subscription store is not configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Subscription(nil), s.records...), nil
}

func (s *MemorySubscriptionStore) Update(_ context.Context, sub *Subscription) error {
	if s == nil {
		return fmt.Errorf("core: subscription store is not configured")
	}
	if sub == nil {
		return BadInputError("core: subscription is required", nil)
	}
	sub.Topic = strings.TrimSpace(sub.Topic)
	if err := sub.Validate(); err != nil {
		return err
	}

	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sub.Persisted() {
		if s.indexByTopic(sub.Topic) >= 0 {
			return UniquenessError(sub.Topic)
		}
		id, err := uuid.NewV7()
		if err != nil {
			return PersistenceError("insert subscription", err)
		}
		record := *sub
		record.ID = id.String()
		record.CreatedAt = now
		record.UpdatedAt = now
		s.records = append(s.records, record)
		*sub = record
		return nil
	}

	index := s.indexByID(sub.ID)
	if index < 0 {
		return NotFoundError(sub.ID)
	}
	if other := s.indexByTopic(sub.Topic); other >= 0 && other != index {
		return UniquenessError(sub.Topic)
	}
	record := *sub
	record.CreatedAt = s.records[index].CreatedAt
	record.UpdatedAt = now
	s.records[index] = record
	*sub = record
	return nil
}

func (s *MemorySubscriptionStore) Delete(_ context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("core: subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index := s.indexByID(id); index >= 0 {
		s.records = append(s.records[:index], s.records[index+1:]...)
	}
	return nil
}

func (s *MemorySubscriptionStore) ListExpiring(_ context.Context, before time.Time, limit int) ([]Subscription, error) {
	if s == nil {
		return nil, fmt.Errorf("core: subscription store is not configured")
	}
	s.mu.RLock()
	out := make([]Subscription, 0)
	for _, record := range s.records {
		if record.HasExpiry() && record.Expires.Before(before) {
			out = append(out, record)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Expires.Before(out[j].Expires)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemorySubscriptionStore) indexByID(id string) int {
	for index, record := range s.records {
		if record.ID == id {
			return index
		}
	}
	return -1
}

func (s *MemorySubscriptionStore) indexByTopic(topic string) int {
	for index, record := range s.records {
		if record.Topic == topic {
			return index
		}
	}
	return -1
}
