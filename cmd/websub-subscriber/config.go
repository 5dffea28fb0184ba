package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "WEBSUB_"

// serviceConfigKeys maps environment suffixes onto core config keys.
var serviceConfigKeys = map[string][]string{
	"SERVICE_NAME":                       {"service_name"},
	"VERIFICATION_DEFAULT_LEASE_SECONDS": {"verification", "default_lease_seconds"},
	"VERIFICATION_MAX_LEASE_SECONDS":     {"verification", "max_lease_seconds"},
	"VERIFICATION_LOCK_TTL_SECONDS":      {"verification", "lock_ttl_seconds"},
	"LEASES_RENEW_WITHIN_SECONDS":        {"leases", "renew_within_seconds"},
	"LEASES_PRUNE_BATCH_SIZE":            {"leases", "prune_batch_size"},
}

type lookupEnv func(key string) (string, bool)

// envConfigLoader feeds WEBSUB_* variables to the cfgx provider as a raw map.
type envConfigLoader struct {
	lookup lookupEnv
}

func (l envConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw := map[string]any{}
	for suffix, path := range serviceConfigKeys {
		value, ok := lookup(envPrefix + suffix)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		var parsed any = strings.TrimSpace(value)
		if path[len(path)-1] != "service_name" {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("config: %s%s must be an integer: %w", envPrefix, suffix, err)
			}
			parsed = n
		}
		setPath(raw, path, parsed)
	}
	return raw, nil
}

func setPath(raw map[string]any, path []string, value any) {
	node := raw
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value
}

// runtimeConfig holds process settings that sit outside core.Config.
type runtimeConfig struct {
	Addr          string
	CallbackPath  string
	MetricsPath   string
	DBDriver      string
	DBDSN         string
	DBDebug       bool
	RedisURL      string
	CacheTTL      time.Duration
	PruneInterval time.Duration
}

func loadRuntimeConfig(lookup lookupEnv) (runtimeConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := runtimeConfig{
		Addr:          envString(lookup, "ADDR", ":8080"),
		CallbackPath:  envString(lookup, "CALLBACK_PATH", "/websub/callback"),
		MetricsPath:   envString(lookup, "METRICS_PATH", "/metrics"),
		DBDriver:      strings.ToLower(envString(lookup, "DB_DRIVER", "sqlite3")),
		DBDSN:         envString(lookup, "DB_DSN", "file:websub.db?cache=shared&_foreign_keys=on"),
		RedisURL:      envString(lookup, "REDIS_URL", ""),
		CacheTTL:      time.Minute,
		PruneInterval: 5 * time.Minute,
	}
	var err error
	if cfg.DBDebug, err = envBool(lookup, "DB_DEBUG", false); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.CacheTTL, err = envDuration(lookup, "CACHE_TTL", cfg.CacheTTL); err != nil {
		return runtimeConfig{}, err
	}
	if cfg.PruneInterval, err = envDuration(lookup, "PRUNE_INTERVAL", cfg.PruneInterval); err != nil {
		return runtimeConfig{}, err
	}
	switch cfg.DBDriver {
	case "sqlite3", "postgres":
	default:
		return runtimeConfig{}, fmt.Errorf("config: unsupported %sDB_DRIVER %q", envPrefix, cfg.DBDriver)
	}
	if !strings.HasPrefix(cfg.CallbackPath, "/") {
		cfg.CallbackPath = "/" + cfg.CallbackPath
	}
	return cfg, nil
}

func envString(lookup lookupEnv, suffix string, fallback string) string {
	if value, ok := lookup(envPrefix + suffix); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func envBool(lookup lookupEnv, suffix string, fallback bool) (bool, error) {
	value := envString(lookup, suffix, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("config: %s%s must be a boolean: %w", envPrefix, suffix, err)
	}
	return parsed, nil
}

// envDuration accepts a Go duration; zero disables the related loop or cache.
func envDuration(lookup lookupEnv, suffix string, fallback time.Duration) (time.Duration, error) {
	value := envString(lookup, suffix, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("config: %s%s must be a non-negative duration, got %q", envPrefix, suffix, value)
	}
	return parsed, nil
}

// persistenceConfig satisfies the go-persistence-bun config contract.
type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-websub" }
