package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"JWT_SECRET":   "secret",
		"DATABASE_URL": "postgres://localhost/wishpool",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Fatalf("store driver: %q", cfg.StoreDriver)
	}
	if cfg.Port != "8080" || cfg.PrometheusPort != "9090" {
		t.Fatalf("ports: %q %q", cfg.Port, cfg.PrometheusPort)
	}
	if cfg.JWTTTL != 168*time.Hour {
		t.Fatalf("jwt ttl: %v", cfg.JWTTTL)
	}
	if cfg.DispatchInterval != 5*time.Second || cfg.DispatchBatch != 50 || cfg.DispatchMaxAttempts != 5 {
		t.Fatalf("dispatch settings: %+v", cfg)
	}
	if cfg.CommitMaxAttempts != 3 {
		t.Fatalf("commit attempts: %d", cfg.CommitMaxAttempts)
	}
}

func TestParseRequiresSecret(t *testing.T) {
	if _, err := Parse(map[string]string{"STORE_DRIVER": "memory"}); err == nil {
		t.Fatal("expected missing JWT_SECRET error")
	}
}

func TestParseRequiresDatabaseURLForSQLStores(t *testing.T) {
	for _, driver := range []string{DriverPostgres, DriverSQLite} {
		_, err := Parse(map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": driver})
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Fatalf("%s: expected DATABASE_URL error, got %v", driver, err)
		}
	}
	if _, err := Parse(map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": DriverMemory}); err != nil {
		t.Fatalf("memory store needs no DATABASE_URL: %v", err)
	}
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	if _, err := Parse(map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "mongo"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestSQLiteDSN(t *testing.T) {
	if got := SQLiteDSN("/tmp/a.db"); !strings.HasPrefix(got, "/tmp/a.db?_pragma=busy_timeout") {
		t.Fatalf("dsn: %q", got)
	}
	if got := SQLiteDSN("file:a.db?mode=rwc"); !strings.HasPrefix(got, "file:a.db?mode=rwc&_pragma=") {
		t.Fatalf("dsn with query: %q", got)
	}
	if !strings.Contains(SQLiteDSN("x.db"), "_txlock=immediate") {
		t.Fatal("expected immediate transactions")
	}
}
