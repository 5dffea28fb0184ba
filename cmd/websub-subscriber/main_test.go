package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/goliatone/go-websub/core"
	"github.com/goliatone/go-websub/inbound"
	sqlstore "github.com/goliatone/go-websub/store/sql"
)

func mapLookup(values map[string]string) lookupEnv {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestEnvConfigLoader_MapsServiceKeys(t *testing.T) {
	raw, err := envConfigLoader{lookup: mapLookup(map[string]string{
		"WEBSUB_SERVICE_NAME":                       "subscriber-a",
		"WEBSUB_VERIFICATION_DEFAULT_LEASE_SECONDS": "600",
		"WEBSUB_LEASES_PRUNE_BATCH_SIZE":            " 25 ",
		"WEBSUB_VERIFICATION_MAX_LEASE_SECONDS":     "",
	})}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["service_name"] != "subscriber-a" {
		t.Fatalf("expected service name, got %#v", raw)
	}
	verification, _ := raw["verification"].(map[string]any)
	if verification["default_lease_seconds"] != 600 {
		t.Fatalf("expected default lease 600, got %#v", verification)
	}
	if _, ok := verification["max_lease_seconds"]; ok {
		t.Fatalf("expected blank variable to be skipped")
	}
	leases, _ := raw["leases"].(map[string]any)
	if leases["prune_batch_size"] != 25 {
		t.Fatalf("expected prune batch 25, got %#v", leases)
	}

	cfg, err := core.NewCfgxConfigProvider(envConfigLoader{lookup: mapLookup(map[string]string{
		"WEBSUB_VERIFICATION_MAX_LEASE_SECONDS": "900",
	})}).Load(context.Background(), core.DefaultConfig())
	if err != nil {
		t.Fatalf("cfgx load: %v", err)
	}
	if cfg.Verification.MaxLeaseSeconds != 900 || cfg.ServiceName != "websub" {
		t.Fatalf("expected env override on defaults, got %#v", cfg)
	}
}

func TestEnvConfigLoader_RejectsNonIntegers(t *testing.T) {
	_, err := envConfigLoader{lookup: mapLookup(map[string]string{
		"WEBSUB_LEASES_RENEW_WITHIN_SECONDS": "soon",
	})}.LoadRaw(context.Background())
	if err == nil {
		t.Fatalf("expected integer parse error")
	}
}

func TestLoadRuntimeConfig(t *testing.T) {
	cfg, err := loadRuntimeConfig(mapLookup(nil))
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.CallbackPath != "/websub/callback" || cfg.DBDriver != "sqlite3" {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.PruneInterval != 5*time.Minute || cfg.CacheTTL != time.Minute {
		t.Fatalf("unexpected default durations %#v", cfg)
	}

	cfg, err = loadRuntimeConfig(mapLookup(map[string]string{
		"WEBSUB_CALLBACK_PATH":  "hub",
		"WEBSUB_DB_DRIVER":      "POSTGRES",
		"WEBSUB_PRUNE_INTERVAL": "0s",
		"WEBSUB_DB_DEBUG":       "true",
	}))
	if err != nil {
		t.Fatalf("overrides: %v", err)
	}
	if cfg.CallbackPath != "/hub" || cfg.DBDriver != "postgres" || cfg.PruneInterval != 0 || !cfg.DBDebug {
		t.Fatalf("unexpected overrides %#v", cfg)
	}

	for _, bad := range []map[string]string{
		{"WEBSUB_DB_DRIVER": "mysql"},
		{"WEBSUB_CACHE_TTL": "-1s"},
		{"WEBSUB_PRUNE_INTERVAL": "often"},
		{"WEBSUB_DB_DEBUG": "maybe"},
	} {
		if _, err := loadRuntimeConfig(mapLookup(bad)); err == nil {
			t.Fatalf("expected error for %#v", bad)
		}
	}
}

func TestRouter_ServesCallbackHealthAndMetrics(t *testing.T) {
	store := core.NewMemorySubscriptionStore()
	svc, err := core.NewService(core.DefaultConfig(), core.WithSubscriptionStore(store))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	sub, err := core.NewSubscription("topic1", "", core.ModeSubscribe)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	if err := store.Update(context.Background(), &sub); err != nil {
		t.Fatalf("seed: %v", err)
	}
	callback, err := inbound.NewCallbackHandler(svc)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	healthy := true
	router := newRouter(routerConfig{
		CallbackPath: "/websub/callback",
		MetricsPath:  "/metrics",
		Callback:     callback,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("websub_verify_total 1\n"))
		}),
		Health: func(context.Context) error {
			if !healthy {
				return errors.New("db down")
			}
			return nil
		},
	})

	query := url.Values{}
	query.Set("hub.mode", "subscribe")
	query.Set("hub.topic", "topic1")
	query.Set("hub.challenge", "X")
	cases := []struct {
		method string
		target string
		status int
		body   string
	}{
		{http.MethodGet, "/websub/callback?" + query.Encode(), http.StatusOK, "X"},
		{http.MethodGet, "/websub/callback?hub.mode=subscribe&hub.topic=other&hub.challenge=X", http.StatusNotFound, ""},
		{http.MethodPut, "/websub/callback", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/metrics", http.StatusOK, "websub_verify_total 1\n"},
		{http.MethodGet, "/healthz", http.StatusOK, "ok"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, nil))
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.target, tc.status, rec.Code)
		}
		if tc.body != "" && rec.Body.String() != tc.body {
			t.Fatalf("%s %s: expected body %q, got %q", tc.method, tc.target, tc.body, rec.Body.String())
		}
	}

	healthy = false
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when unhealthy, got %d", rec.Code)
	}
}

func TestOpenPersistence_SQLiteMigratesPushSubscriptions(t *testing.T) {
	ctx := context.Background()
	client, err := openPersistence(ctx, runtimeConfig{
		DBDriver: "sqlite3",
		DBDSN:    fmt.Sprintf("file:websub-cmd-%d?mode=memory&cache=shared", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("open persistence: %v", err)
	}
	defer client.Close()

	store, err := sqlstore.NewRepositoryFactory().BuildSubscriptionStore(client)
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	sub, err := core.NewSubscription("topic1", "", core.ModeSubscribe)
	if err != nil {
		t.Fatalf("new subscription: %v", err)
	}
	if err := store.Update(ctx, &sub); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, found, err := store.FindByTopic(ctx, "topic1"); err != nil || !found {
		t.Fatalf("expected stored subscription, found=%t err=%v", found, err)
	}
}
