// Command websub-subscriber serves WebSub verification callbacks backed by a
// SQL subscription store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	command "github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	websub "github.com/goliatone/go-websub"
	"github.com/goliatone/go-websub/adapters/gocommand"
	"github.com/goliatone/go-websub/adapters/gologger"
	websubprom "github.com/goliatone/go-websub/adapters/prometheus"
	"github.com/goliatone/go-websub/adapters/redislock"
	websubcommand "github.com/goliatone/go-websub/command"
	"github.com/goliatone/go-websub/core"
	"github.com/goliatone/go-websub/inbound"
	websubmigrations "github.com/goliatone/go-websub/migrations"
	sqlstore "github.com/goliatone/go-websub/store/sql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

func main() {
	provider := gologger.NewSlogProvider(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.LookupEnv, provider)
	stop()
	if err != nil {
		gologger.Component(provider, nil, "").Error("websub subscriber stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, lookup lookupEnv, provider *gologger.SlogProvider) error {
	logger := gologger.Component(provider, nil, "")
	rt, err := loadRuntimeConfig(lookup)
	if err != nil {
		return err
	}

	client, err := openPersistence(ctx, rt)
	if err != nil {
		return err
	}
	defer client.Close()

	factoryOpts := []sqlstore.FactoryOption{}
	if rt.CacheTTL > 0 {
		cacheCfg := repositorycache.DefaultConfig()
		cacheCfg.TTL = rt.CacheTTL
		cacheService, cacheErr := repositorycache.NewCacheService(cacheCfg)
		if cacheErr != nil {
			return fmt.Errorf("websub: subscription cache: %w", cacheErr)
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCacheService(cacheService))
	}
	factory := sqlstore.NewRepositoryFactory(factoryOpts...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []websub.Option{
		websub.WithLoggerProvider(provider),
		websub.WithLogger(gologger.Component(provider, nil, "core")),
		websub.WithConfigProvider(core.NewCfgxConfigProvider(envConfigLoader{lookup: lookup})),
		websub.WithRepositoryFactory(factory),
		websub.WithPersistenceClient(client),
		websub.WithMetricsRecorder(websubprom.NewRecorder(registry)),
	}
	if rt.RedisURL != "" {
		locker, redisClient, lockErr := redislock.NewFromURL(ctx, rt.RedisURL)
		if lockErr != nil {
			return lockErr
		}
		defer redisClient.Close()
		opts = append(opts, websub.WithTopicLocker(locker))
		logger.Info("using redis topic locker")
	}

	svc, err := websub.Setup(websub.DefaultConfig(), opts...)
	if err != nil {
		return err
	}

	bus := gocommand.NewRegistryAdapter(command.NewRegistry())
	subscriptions, err := gocommand.RegisterService(bus, svc)
	if err != nil {
		return err
	}
	defer func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}()
	if err := bus.Initialize(); err != nil {
		return err
	}

	callback, err := inbound.NewCallbackHandler(svc, inbound.WithLogger(gologger.Component(provider, nil, "inbound")))
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr: rt.Addr,
		Handler: newRouter(routerConfig{
			CallbackPath: rt.CallbackPath,
			MetricsPath:  rt.MetricsPath,
			Callback:     callback,
			Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			Health: func(ctx context.Context) error {
				return client.DB().PingContext(ctx)
			},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if rt.PruneInterval > 0 {
		go runPruneLoop(ctx, rt.PruneInterval, gologger.Component(provider, nil, "leases"))
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("websub subscriber listening", "addr", rt.Addr, "callback_path", rt.CallbackPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("websub: graceful shutdown failed: %w", err)
	}
	return nil
}

// runPruneLoop removes lapsed leases through the command bus until ctx ends.
func runPruneLoop(ctx context.Context, interval time.Duration, logger core.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := command.NewResult[int]()
			runCtx := command.ContextWithResult(ctx, result)
			if err := gocommand.Dispatch(runCtx, websubcommand.PruneLapsedSubscriptionsMessage{}); err != nil {
				logger.Error("prune lapsed subscriptions failed", "error", err)
				continue
			}
			if pruned, ok := result.Load(); ok && pruned > 0 {
				logger.Info("pruned lapsed subscriptions", "count", pruned)
			}
		}
	}
}

func openPersistence(ctx context.Context, rt runtimeConfig) (*persistence.Client, error) {
	targetDialect, err := websubmigrations.DialectForDriver(rt.DBDriver)
	if err != nil {
		return nil, err
	}
	var dialect schema.Dialect = sqlitedialect.New()
	if targetDialect == websubmigrations.DialectPostgres {
		dialect = pgdialect.New()
	}

	sqlDB, err := sql.Open(rt.DBDriver, rt.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("websub: open %s: %w", rt.DBDriver, err)
	}
	if targetDialect == websubmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: rt.DBDriver, dsn: rt.DBDSN, debug: rt.DBDebug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("websub: persistence client: %w", err)
	}

	if _, err := websubmigrations.RegisterDialect(ctx, targetDialect, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("websub: migrate: %w", err)
	}
	return client, nil
}
