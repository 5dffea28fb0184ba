package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultTopicLockTTL   = 30 * time.Second
	defaultLockRetryDelay = 5 * time.Millisecond
)

// MemoryTopicLocker serializes work per topic inside one process. Acquire
// waits for the current holder until ctx is done; a holder that outlives its
// ttl loses the lock.
type MemoryTopicLocker struct {
	mu         sync.Mutex
	locks      map[string]memoryLockEntry
	nowFn      func() time.Time
	retryDelay time.Duration
	sequence   uint64
}

type memoryLockEntry struct {
	token uint64
	until time.Time
}

func NewMemoryTopicLocker() *MemoryTopicLocker {
	return &MemoryTopicLocker{
		locks:      make(map[string]memoryLockEntry),
		nowFn:      func() time.Time { return time.Now().UTC() },
		retryDelay: defaultLockRetryDelay,
	}
}

func (l *MemoryTopicLocker) Acquire(ctx context.Context, topic string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: topic locker is not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("core: topic is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultTopicLockTTL
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		if handle, ok := l.tryAcquire(topic, ttl); ok {
			return handle, nil
		}
		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w for topic %q: %w", ErrTopicLocked, topic, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *MemoryTopicLocker) tryAcquire(topic string, ttl time.Duration) (LockHandle, bool) {
	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.locks[topic]; ok && now.Before(entry.until) {
		return nil, false
	}
	l.sequence++
	l.locks[topic] = memoryLockEntry{token: l.sequence, until: now.Add(ttl)}
	return &memoryLockHandle{locker: l, topic: topic, token: l.sequence}, true
}

type memoryLockHandle struct {
	locker *MemoryTopicLocker
	topic  string
	token  uint64
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		if entry, ok := h.locker.locks[h.topic]; ok && entry.token == h.token {
			delete(h.locker.locks, h.topic)
		}
		h.locker.mu.Unlock()
	})
	return nil
}
