package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-websub/core"
)

type countingSubscriptionStore struct {
	*core.MemorySubscriptionStore

	mu        sync.Mutex
	findCalls int
	findErr   error
}

func (s *countingSubscriptionStore) FindByTopic(ctx context.Context, topic string) (core.Subscription, bool, error) {
	s.mu.Lock()
	s.findCalls++
	findErr := s.findErr
	s.mu.Unlock()
	if findErr != nil {
		return core.Subscription{}, false, findErr
	}
	return s.MemorySubscriptionStore.FindByTopic(ctx, topic)
}

func (s *countingSubscriptionStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls
}

func TestCachedSubscriptionStore_FindByTopic_MissFetchThenHit(t *testing.T) {
	ctx := context.Background()
	base := &countingSubscriptionStore{MemorySubscriptionStore: core.NewMemorySubscriptionStore()}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	sub, _ := core.NewSubscription("topic1", "", core.ModeSubscribe)
	if err := store.Update(ctx, &sub); err != nil {
		t.Fatalf("insert: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, found, err := store.FindByTopic(ctx, "topic1")
		if err != nil || !found || got.ID != sub.ID {
			t.Fatalf("find %d: found=%t err=%v got=%#v", i, found, err, got)
		}
	}
	if base.calls() != 1 {
		t.Fatalf("expected second read to be a cache hit, base calls=%d", base.calls())
	}
}

func TestCachedSubscriptionStore_CachesMissesUntilInsert(t *testing.T) {
	ctx := context.Background()
	base := &countingSubscriptionStore{MemorySubscriptionStore: core.NewMemorySubscriptionStore()}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, found, err := store.FindByTopic(ctx, "unknown-topic"); err != nil || found {
			t.Fatalf("expected miss, found=%t err=%v", found, err)
		}
	}
	if base.calls() != 1 {
		t.Fatalf("expected cached miss, base calls=%d", base.calls())
	}

	sub, _ := core.NewSubscription("unknown-topic", "", core.ModeSubscribe)
	if err := store.Update(ctx, &sub); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, found, err := store.FindByTopic(ctx, "unknown-topic"); err != nil || !found {
		t.Fatalf("expected insert to evict cached miss, found=%t err=%v", found, err)
	}
}

func TestCachedSubscriptionStore_UpdateAndDeleteEvict(t *testing.T) {
	ctx := context.Background()
	base := &countingSubscriptionStore{MemorySubscriptionStore: core.NewMemorySubscriptionStore()}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	sub, _ := core.NewSubscription("topic1", "", core.ModeSubscribe)
	if err := store.Update(ctx, &sub); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := store.FindByID(ctx, sub.ID); err != nil {
		t.Fatalf("prime id key: %v", err)
	}
	if _, _, err := store.FindByTopic(ctx, "topic1"); err != nil {
		t.Fatalf("prime topic key: %v", err)
	}

	sub.Confirm(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	if err := store.Update(ctx, &sub); err != nil {
		t.Fatalf("update: %v", err)
	}
	byID, _, _ := store.FindByID(ctx, sub.ID)
	byTopic, _, _ := store.FindByTopic(ctx, "topic1")
	if !byID.Confirmed || !byTopic.Confirmed {
		t.Fatalf("expected evicted keys to serve confirmed record, id=%#v topic=%#v", byID, byTopic)
	}

	if err := store.Delete(ctx, sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := store.FindByID(ctx, sub.ID); found {
		t.Fatalf("expected delete to evict id key")
	}
	if _, found, _ := store.FindByTopic(ctx, "topic1"); found {
		t.Fatalf("expected delete to evict topic key")
	}
}

func TestCachedSubscriptionStore_PropagatesBaseErrors(t *testing.T) {
	base := &countingSubscriptionStore{
		MemorySubscriptionStore: core.NewMemorySubscriptionStore(),
		findErr:                 core.ErrPersistence,
	}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if _, _, err := store.FindByTopic(context.Background(), "topic1"); !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func TestSubscriptionCacheKey_Contract(t *testing.T) {
	key := SubscriptionCacheKey(" Topic ", " http://example.com/feed a ")
	const expected = "go-websub::subscription::v1::topic::http:%2F%2Fexample.com%2Ffeed%20a"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}
}

func TestNewCachedSubscriptionStore_RequiresDependencies(t *testing.T) {
	if _, err := NewCachedSubscriptionStore(nil, newTestSubscriptionCacheService(t)); err == nil {
		t.Fatalf("expected error without base store")
	}
	if _, err := NewCachedSubscriptionStore(core.NewMemorySubscriptionStore(), nil); err == nil {
		t.Fatalf("expected error without cache service")
	}
}

func newTestSubscriptionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

// Two processes share one database and one distributed locker, each with its
// own cache. Verification in one must see writes made by the other.
func TestCachedSubscriptionStore_VerifyIgnoresStaleCacheAcrossServices(t *testing.T) {
	ctx := context.Background()
	shared := core.NewMemorySubscriptionStore()
	locker := core.NewMemoryTopicLocker()

	newService := func() (*core.Service, *CachedSubscriptionStore) {
		t.Helper()
		cached, err := NewCachedSubscriptionStore(shared, newTestSubscriptionCacheService(t))
		if err != nil {
			t.Fatalf("new cached store: %v", err)
		}
		svc, err := core.NewService(core.DefaultConfig(),
			core.WithSubscriptionStore(cached),
			core.WithTopicLocker(locker),
		)
		if err != nil {
			t.Fatalf("new service: %v", err)
		}
		return svc, cached
	}
	serviceA, _ := newService()
	serviceB, cacheB := newService()

	pending, _ := core.NewSubscription("topic1", "", core.ModeSubscribe)
	if err := shared.Update(ctx, &pending); err != nil {
		t.Fatalf("seed topic1: %v", err)
	}
	if _, found, err := cacheB.FindByTopic(ctx, "topic1"); err != nil || !found {
		t.Fatalf("warm cache: found=%t err=%v", found, err)
	}
	if result, err := serviceA.Verify(ctx, core.VerificationRequest{Mode: core.ModeSubscribe, Topic: "topic1", Challenge: "a"}); err != nil || !result.Accepted {
		t.Fatalf("confirm on A: %#v err=%v", result, err)
	}
	result, err := serviceB.Verify(ctx, core.VerificationRequest{Mode: core.ModeUnsubscribe, Topic: "topic1", Challenge: "b"})
	if err != nil || !result.Accepted || result.Outcome != core.VerificationRemoved {
		t.Fatalf("expected B to remove the subscription A confirmed, got %#v err=%v", result, err)
	}

	confirmed, _ := core.NewSubscription("topic2", "", core.ModeSubscribe)
	confirmed.Confirmed = true
	if err := shared.Update(ctx, &confirmed); err != nil {
		t.Fatalf("seed topic2: %v", err)
	}
	if _, found, err := cacheB.FindByTopic(ctx, "topic2"); err != nil || !found {
		t.Fatalf("warm cache: found=%t err=%v", found, err)
	}
	if result, err := serviceA.Verify(ctx, core.VerificationRequest{Mode: core.ModeUnsubscribe, Topic: "topic2", Challenge: "a"}); err != nil || !result.Accepted {
		t.Fatalf("remove on A: %#v err=%v", result, err)
	}
	result, err = serviceB.Verify(ctx, core.VerificationRequest{Mode: core.ModeSubscribe, Topic: "topic2", Challenge: "b"})
	if err != nil {
		t.Fatalf("expected a rejection, not an error: %v", err)
	}
	if result.Accepted || result.StatusCode != 404 {
		t.Fatalf("expected 404 rejection for the removed topic, got %#v", result)
	}
}

func TestCachedSubscriptionStore_LockedReadsBypassAndEvict(t *testing.T) {
	ctx := context.Background()
	base := &countingSubscriptionStore{MemorySubscriptionStore: core.NewMemorySubscriptionStore()}
	store, err := NewCachedSubscriptionStore(base, newTestSubscriptionCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	if _, _, err := store.FindByTopic(ctx, "topic1"); err != nil {
		t.Fatalf("warm miss: %v", err)
	}

	sub, _ := core.NewSubscription("topic1", "", core.ModeSubscribe)
	if err := base.MemorySubscriptionStore.Update(ctx, &sub); err != nil {
		t.Fatalf("insert behind the cache: %v", err)
	}
	if _, found, _ := store.FindByTopic(ctx, "topic1"); found {
		t.Fatalf("expected unlocked read to serve the cached miss")
	}
	got, found, err := store.FindByTopic(core.WithLockedReads(ctx), "topic1")
	if err != nil || !found || got.ID != sub.ID {
		t.Fatalf("expected locked read to reach the base store, found=%t err=%v", found, err)
	}
	if _, found, _ := store.FindByTopic(ctx, "topic1"); !found {
		t.Fatalf("expected locked read to evict the stale entry")
	}
	if base.calls() != 3 {
		t.Fatalf("expected three base reads, got %d", base.calls())
	}
}
