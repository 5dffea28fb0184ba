package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-websub/core"
)

const subscriptionCacheKeyPrefix = "go-websub::subscription::v1"

// CachedSubscriptionStore serves FindByID and FindByTopic through a
// read-through cache. Writes go to the base store first and then evict
// every key the record could have been cached under. Reads made under a
// topic lock (core.LockedReads) go to the base store and drop the cached
// entry, so the cache never feeds a verification decision.
type CachedSubscriptionStore struct {
	base  core.SubscriptionStore
	cache repositorycache.CacheService
}

// cachedLookup records misses as well as hits so unknown topics do not
// reach the database on every callback.
type cachedLookup struct {
	Found        bool
	Subscription core.Subscription
}

func NewCachedSubscriptionStore(
	base core.SubscriptionStore,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// SubscriptionCacheKey returns go-websub::subscription::v1::<field>::<value>
// with the value URL-path escaped.
func SubscriptionCacheKey(field string, value string) string {
	return strings.Join([]string{
		subscriptionCacheKeyPrefix,
		strings.ToLower(strings.TrimSpace(field)),
		url.PathEscape(strings.TrimSpace(value)),
	}, "::")
}

func (s *CachedSubscriptionStore) FindByID(ctx context.Context, id string) (core.Subscription, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, false, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Subscription{}, false, nil
	}
	return s.lookup(ctx, SubscriptionCacheKey("id", id), func(ctx context.Context) (core.Subscription, bool, error) {
		return s.base.FindByID(ctx, id)
	})
}

func (s *CachedSubscriptionStore) FindByTopic(ctx context.Context, topic string) (core.Subscription, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, false, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return core.Subscription{}, false, nil
	}
	return s.lookup(ctx, SubscriptionCacheKey("topic", topic), func(ctx context.Context) (core.Subscription, bool, error) {
		return s.base.FindByTopic(ctx, topic)
	})
}

func (s *CachedSubscriptionStore) List(ctx context.Context) ([]core.Subscription, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedSubscriptionStore) ListExpiring(ctx context.Context, before time.Time, limit int) ([]core.Subscription, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.ListExpiring(ctx, before, limit)
}

func (s *CachedSubscriptionStore) Update(ctx context.Context, sub *core.Subscription) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	if sub == nil {
		return core.BadInputError("sqlstore: subscription is required", nil)
	}

	keys := []string{SubscriptionCacheKey("topic", sub.Topic)}
	if sub.Persisted() {
		previous, found, err := s.base.FindByID(ctx, sub.ID)
		if err != nil {
			return err
		}
		if found {
			keys = append(keys, SubscriptionCacheKey("topic", previous.Topic))
		}
	}

	if err := s.base.Update(ctx, sub); err != nil {
		return err
	}
	keys = append(keys, SubscriptionCacheKey("id", sub.ID))
	return s.evict(ctx, keys...)
}

func (s *CachedSubscriptionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	keys := []string{SubscriptionCacheKey("id", id)}
	previous, found, err := s.base.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if found {
		keys = append(keys, SubscriptionCacheKey("topic", previous.Topic))
	}

	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.evict(ctx, keys...)
}

func (s *CachedSubscriptionStore) lookup(
	ctx context.Context,
	cacheKey string,
	fetch func(context.Context) (core.Subscription, bool, error),
) (core.Subscription, bool, error) {
	if core.LockedReads(ctx) {
		sub, found, err := fetch(ctx)
		if err != nil {
			return core.Subscription{}, false, err
		}
		if err := s.evict(ctx, cacheKey); err != nil {
			return core.Subscription{}, false, err
		}
		return sub, found, nil
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedLookup, error) {
		sub, found, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return cachedLookup{}, fetchErr
		}
		return cachedLookup{Found: found, Subscription: sub}, nil
	})
	if err != nil {
		return core.Subscription{}, false, err
	}
	if !entry.Found {
		return core.Subscription{}, false, nil
	}
	return entry.Subscription, true, nil
}

func (s *CachedSubscriptionStore) evict(ctx context.Context, keys ...string) error {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
