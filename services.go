package websub

import (
	"github.com/goliatone/go-websub/core"
	"github.com/goliatone/go-websub/inbound"
)

type Config = core.Config

type VerificationConfig = core.VerificationConfig

type LeaseConfig = core.LeaseConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Subscription = core.Subscription
type SubscriptionStore = core.SubscriptionStore
type TopicLocker = core.TopicLocker
type MetricsRecorder = core.MetricsRecorder
type Mode = core.Mode

type VerificationRequest = core.VerificationRequest

type VerificationResult = core.VerificationResult

const (
	ModeSubscribe   = core.ModeSubscribe
	ModeUnsubscribe = core.ModeUnsubscribe
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithSubscriptionStore = core.WithSubscriptionStore
	WithTopicLocker       = core.WithTopicLocker
	WithJobEnqueuer       = core.WithJobEnqueuer
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

// NewSubscription builds a pending record for topic awaiting hub verification.
func NewSubscription(topic string, secret string, mode Mode) (Subscription, error) {
	return core.NewSubscription(topic, secret, mode)
}

// NewCallbackHandler exposes svc as the http.Handler a hub calls back on.
func NewCallbackHandler(svc *Service, opts ...inbound.HandlerOption) (*inbound.CallbackHandler, error) {
	if svc == nil {
		return inbound.NewCallbackHandler(nil, opts...)
	}
	return inbound.NewCallbackHandler(svc, opts...)
}
