package main

import (
	"context"
	"path/filepath"
	"testing"

	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/logger"
	"repairdesk/backend/internal/store/memory"
	"repairdesk/backend/internal/store/sqlite"
)

func validConfig() config.Config {
	return config.Config{Port: "8080", AllowedOrigin: "http://127.0.0.1:3000", RateLimitRPS: 20, RateLimitBurst: 40}
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"port":          func(c *config.Config) { c.Port = "http" },
		"origin":        func(c *config.Config) { c.AllowedOrigin = "" },
		"rate limit":    func(c *config.Config) { c.RateLimitRPS = 0 },
		"many backends": func(c *config.Config) { c.DatabaseURL = "postgres://x"; c.SQLitePath = "pos.db" },
	}
	for name, mutate := range cases {
		cfg := validConfig()
		mutate(&cfg)
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("%s: expected config to be rejected", name)
		}
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	if err := validateConfig(validConfig()); err != nil {
		t.Fatalf("expected valid config to pass, got %v", err)
	}
}

func TestOpenBlobStoreDefaultsToMemory(t *testing.T) {
	blobs, closers, err := openBlobStore(context.Background(), validConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := blobs.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", blobs)
	}
	if len(closers) != 0 {
		t.Fatalf("memory store needs no closers")
	}
}

func TestOpenBlobStoreUsesSQLitePath(t *testing.T) {
	cfg := validConfig()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "pos.db")

	blobs, closers, err := openBlobStore(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		for _, c := range closers {
			_ = c()
		}
	}()
	if _, ok := blobs.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", blobs)
	}
}
