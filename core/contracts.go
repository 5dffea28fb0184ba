package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// VerificationRequest carries the hub.* parameters of one verification callback.
// LeaseSeconds is nil when the hub did not send hub.lease_seconds.
type VerificationRequest struct {
	Mode         Mode
	Topic        string
	Challenge    string
	LeaseSeconds *int
}

type VerificationOutcome string

const (
	VerificationConfirmed VerificationOutcome = "confirmed"
	VerificationRenewed   VerificationOutcome = "renewed"
	VerificationRemoved   VerificationOutcome = "removed"
	VerificationRejected  VerificationOutcome = "rejected"
)

// VerificationResult is the protocol answer for a verification callback.
type VerificationResult struct {
	Accepted     bool
	Outcome      VerificationOutcome
	StatusCode   int
	ContentType  string
	Body         string
	Subscription Subscription
}

type SubscriptionStore interface {
	FindByID(ctx context.Context, id string) (Subscription, bool, error)
	FindByTopic(ctx context.Context, topic string) (Subscription, bool, error)
	List(ctx context.Context) ([]Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]Subscription, error)
}

type TopicLocker interface {
	Acquire(ctx context.Context, topic string, ttl time.Duration) (LockHandle, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

type Verifier interface {
	Verify(ctx context.Context, req VerificationRequest) (VerificationResult, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// RepositoryStoreFactory builds a SubscriptionStore from a persistence client.
type RepositoryStoreFactory interface {
	BuildSubscriptionStore(persistenceClient any) (SubscriptionStore, error)
}

type CommandMessage interface {
	Type() string
}
