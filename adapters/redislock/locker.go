// Package redislock provides a Redis backed core.TopicLocker so that several
// subscriber processes sharing one database serialize callbacks per topic.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-websub/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix  = "websub:topic-lock:"
	defaultLockTTL    = 30 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
)

// unlockScript deletes the key only while it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client     redis.UniversalClient
	keyPrefix  string
	retryDelay time.Duration
}

type Option func(*Locker)

func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		if strings.TrimSpace(prefix) != "" {
			l.keyPrefix = prefix
		}
	}
}

func WithRetryDelay(delay time.Duration) Option {
	return func(l *Locker) {
		if delay > 0 {
			l.retryDelay = delay
		}
	}
}

func New(client redis.UniversalClient, opts ...Option) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("redislock: redis client is required")
	}
	locker := &Locker{
		client:     client,
		keyPrefix:  DefaultKeyPrefix,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(locker)
		}
	}
	return locker, nil
}

// NewFromURL parses a redis:// URL and pings the server before returning.
func NewFromURL(ctx context.Context, rawURL string, opts ...Option) (*Locker, *redis.Client, error) {
	parsed, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, nil, fmt.Errorf("redislock: parse redis url: %w", err)
	}
	client := redis.NewClient(parsed)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redislock: redis ping failed: %w", err)
	}
	locker, err := New(client, opts...)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return locker, client, nil
}

// Acquire retries SET NX until it wins or ctx is done.
func (l *Locker) Acquire(ctx context.Context, topic string, ttl time.Duration) (core.LockHandle, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("redislock: locker is not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("redislock: topic is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := l.key(topic)
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redislock: acquire %q: %w", topic, err)
		}
		if ok {
			return &handle{client: l.client, key: key, token: token}, nil
		}
		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w for topic %q: %w", core.ErrTopicLocked, topic, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Locker) key(topic string) string {
	return l.keyPrefix + topic
}

type handle struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Unlock is a no-op when the lease already expired and another holder took it.
func (h *handle) Unlock(ctx context.Context) error {
	if h == nil || h.client == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := unlockScript.Run(ctx, h.client, []string{h.key}, h.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redislock: release %q: %w", h.key, err)
	}
	return nil
}
