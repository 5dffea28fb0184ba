package core

import (
	"context"
	"errors"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const rootLoggerName = "websub"

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	subscriptionStore SubscriptionStore
	topicLocker       TopicLocker
	jobEnqueuer       JobEnqueuer
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	SubscriptionStore SubscriptionStore
	TopicLocker       TopicLocker
	JobEnqueuer       JobEnqueuer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}
	builder.fillDefaults()

	provider, logger := builder.resolveLogger()
	finalConfig, err := builder.resolveConfig(context.Background())
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	store, err := builder.resolveStore()
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		subscriptionStore: store,
		topicLocker:       builder.topicLocker,
		jobEnqueuer:       builder.jobEnqueuer,
		now:               builder.clock,
	}, nil
}

// fillDefaults replaces dependencies an option reset to nil.
func (b *serviceBuilder) fillDefaults() {
	fallback := defaultServiceBuilder(b.runtimeConfig)
	if b.errorFactory == nil {
		b.errorFactory = fallback.errorFactory
	}
	if b.errorMapper == nil {
		b.errorMapper = fallback.errorMapper
	}
	if b.metricsRecorder == nil {
		b.metricsRecorder = fallback.metricsRecorder
	}
	if b.configProvider == nil {
		b.configProvider = fallback.configProvider
	}
	if b.optionsResolver == nil {
		b.optionsResolver = fallback.optionsResolver
	}
	if b.clock == nil {
		b.clock = fallback.clock
	}
	if b.topicLocker == nil {
		b.topicLocker = NewMemoryTopicLocker()
	}
}

// resolveLogger applies provider > logger > nop and names the result
// "websub" when a provider is available.
func (b *serviceBuilder) resolveLogger() (LoggerProvider, Logger) {
	provider, logger := glog.Resolve(rootLoggerName, b.loggerProvider, b.logger)
	if provider != nil {
		if named := provider.GetLogger(rootLoggerName); named != nil {
			logger = named
		}
	}
	return provider, glog.Ensure(logger)
}

// resolveConfig layers defaults, provider-loaded values and the runtime
// config passed to NewService.
func (b *serviceBuilder) resolveConfig(ctx context.Context) (Config, error) {
	defaults := DefaultConfig()
	loaded, err := b.configProvider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return b.optionsResolver.Resolve(defaults, loaded, b.runtimeConfig)
}

// resolveStore prefers an explicit store, then the repository factory, then
// the in-memory store.
func (b *serviceBuilder) resolveStore() (SubscriptionStore, error) {
	if b.subscriptionStore != nil {
		return b.subscriptionStore, nil
	}
	switch factory := b.repositoryFactory.(type) {
	case RepositoryStoreFactory:
		store, err := factory.BuildSubscriptionStore(b.persistenceClient)
		if err != nil || store != nil {
			return store, err
		}
	case interface{ SubscriptionStore() SubscriptionStore }:
		if store := factory.SubscriptionStore(); store != nil {
			return store, nil
		}
	}
	return NewMemorySubscriptionStore(), nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		SubscriptionStore: s.subscriptionStore,
		TopicLocker:       s.topicLocker,
		JobEnqueuer:       s.jobEnqueuer,
	}
}

// SaveSubscription persists pending or updated intent recorded by the
// subscription-request flow. Writes for a topic are serialized with its
// verification callbacks.
func (s *Service) SaveSubscription(ctx context.Context, sub *Subscription) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "save_subscription", err, fields)
	}()
	if err := s.storeReady(); err != nil {
		return err
	}
	if sub == nil {
		return s.mapError(BadInputError("core: subscription is required", nil))
	}
	sub.Topic = strings.TrimSpace(sub.Topic)
	fields["topic"] = sub.Topic
	if err := sub.Validate(); err != nil {
		return s.mapError(err)
	}

	err = s.withTopicLock(ctx, sub.Topic, func(ctx context.Context) error {
		return s.subscriptionStore.Update(ctx, sub)
	})
	if err != nil {
		return s.mapError(err)
	}
	fields["subscription_id"] = sub.ID
	fields["state"] = string(sub.State())
	return nil
}

func (s *Service) DeleteSubscription(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	id = strings.TrimSpace(id)
	fields := map[string]any{"subscription_id": id}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_subscription", err, fields)
	}()
	if err := s.storeReady(); err != nil {
		return err
	}
	if id == "" {
		return s.mapError(BadInputError("core: subscription id is required", nil))
	}

	existing, found, err := s.subscriptionStore.FindByID(ctx, id)
	if err != nil {
		return s.mapError(err)
	}
	if !found {
		return nil
	}
	fields["topic"] = existing.Topic
	err = s.withTopicLock(ctx, existing.Topic, func(ctx context.Context) error {
		return s.subscriptionStore.Delete(ctx, id)
	})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) FindSubscription(ctx context.Context, id string) (Subscription, bool, error) {
	if err := s.storeReady(); err != nil {
		return Subscription{}, false, err
	}
	sub, found, err := s.subscriptionStore.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Subscription{}, false, s.mapError(err)
	}
	return sub, found, nil
}

func (s *Service) FindSubscriptionByTopic(ctx context.Context, topic string) (Subscription, bool, error) {
	if err := s.storeReady(); err != nil {
		return Subscription{}, false, err
	}
	sub, found, err := s.subscriptionStore.FindByTopic(ctx, strings.TrimSpace(topic))
	if err != nil {
		return Subscription{}, false, s.mapError(err)
	}
	return sub, found, nil
}

func (s *Service) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	if err := s.storeReady(); err != nil {
		return nil, err
	}
	subs, err := s.subscriptionStore.List(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return subs, nil
}

var errStoreNotConfigured = errors.New("core: subscription store is not configured")

func (s *Service) storeReady() error {
	if s == nil || s.subscriptionStore == nil {
		return errStoreNotConfigured
	}
	return nil
}

// withTopicLock runs fn while holding the topic lock. fn sees a context
// marked with WithLockedReads so caching stores read the base store. A failed
// unlock is logged and does not undo a change fn already committed; the lock
// ttl bounds how long the topic stays blocked.
func (s *Service) withTopicLock(ctx context.Context, topic string, fn func(context.Context) error) error {
	handle, err := s.topicLocker.Acquire(ctx, topic, s.config.Verification.LockTTL())
	if err != nil {
		return err
	}
	defer func() {
		if unlockErr := handle.Unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			s.logError(ctx, "topic unlock failed", map[string]any{"topic": topic, "error": unlockErr.Error()})
		}
	}()
	return fn(WithLockedReads(ctx))
}

type lockedReadsKey struct{}

// WithLockedReads marks ctx as running under a topic lock.
func WithLockedReads(ctx context.Context) context.Context {
	return context.WithValue(ctx, lockedReadsKey{}, true)
}

// LockedReads reports whether ctx runs under a topic lock. Stores that cache
// reads must bypass the cache for such contexts, since another process may
// have changed the row under the same lock.
func LockedReads(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	locked, _ := ctx.Value(lockedReadsKey{}).(bool)
	return locked
}

func (s *Service) mapError(err error) error {
	if err == nil || s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
