package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const (
	secretTopic1 = "ThisSecretMustHaveExactly32Bytes"
	secretTopic2 = "ThisOneAlsoHasToHave32Characters"
	secretTopic3 = "EvenThisSecretNeeds32Characters!"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now.UTC()}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct {
	*MemorySubscriptionStore
	findErr   error
	updateErr error
	deleteErr error
}

func (s *failingStore) FindByTopic(ctx context.Context, topic string) (Subscription, bool, error) {
	if s.findErr != nil {
		return Subscription{}, false, s.findErr
	}
	return s.MemorySubscriptionStore.FindByTopic(ctx, topic)
}

func (s *failingStore) Update(ctx context.Context, sub *Subscription) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemorySubscriptionStore.Update(ctx, sub)
}

func (s *failingStore) Delete(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemorySubscriptionStore.Delete(ctx, id)
}

type captureEnqueuer struct {
	mu       sync.Mutex
	messages []*JobExecutionMessage
	err      error
}

func (e *captureEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
	return nil
}

var errBackendDown = errors.New("backend down")

func newTestService(t *testing.T, store SubscriptionStore, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
	}
	if store != nil {
		base = append(base, WithSubscriptionStore(store))
	}
	svc, err := NewService(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedSubscription(t *testing.T, store SubscriptionStore, topic string, secret string, mode Mode) Subscription {
	t.Helper()
	sub, err := NewSubscription(topic, secret, mode)
	if err != nil {
		t.Fatalf("new subscription %s: %v", topic, err)
	}
	if err := store.Update(context.Background(), &sub); err != nil {
		t.Fatalf("insert subscription %s: %v", topic, err)
	}
	return sub
}

func intPtr(value int) *int {
	return &value
}
