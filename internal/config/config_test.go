package config

import (
	"os"
	"path/filepath"
	"testing"
)

var ledgerEnvKeys = []string{
	"LEDGER_APP_ENV",
	"LEDGER_SERVER_ADDR",
	"LEDGER_DATABASE_PATH",
	"LEDGER_AUTH_JWTSECRET",
	"LEDGER_AUTH_TOKENTTLMINUTES",
	"LEDGER_AUTH_BCRYPTCOST",
	"LEDGER_EXPORT_DIR",
	"LEDGER_STORAGE_BUCKET",
}

func clearLedgerEnv(t *testing.T) {
	t.Helper()
	for _, key := range ledgerEnvKeys {
		unsetEnvWithCleanup(t, key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearLedgerEnv(t)

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Path != "data/bank_users.db" {
		t.Fatalf("expected default database path, got %q", cfg.Database.Path)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.TokenTTLMinutes != 60 || cfg.Auth.BcryptCost != 10 {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearLedgerEnv(t)
	setEnvWithCleanup(t, "LEDGER_DATABASE_PATH", "/tmp/ledger.db")
	setEnvWithCleanup(t, "LEDGER_AUTH_JWTSECRET", "s3cret")
	setEnvWithCleanup(t, "LEDGER_AUTH_TOKENTTLMINUTES", "15")
	setEnvWithCleanup(t, "LEDGER_APP_ENV", "production")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Path != "/tmp/ledger.db" {
		t.Fatalf("expected database path from env, got %q", cfg.Database.Path)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.TokenTTLMinutes != 15 {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if cfg.IsDevelopment() {
		t.Fatalf("expected production env")
	}
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearLedgerEnv(t)
	dir := t.TempDir()
	dotenv := "LEDGER_EXPORT_DIR=/exports\nLEDGER_AUTH_JWTSECRET=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	setEnvWithCleanup(t, "LEDGER_AUTH_JWTSECRET", "from-env")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Export.Dir != "/exports" {
		t.Fatalf("expected export dir from .env, got %q", cfg.Export.Dir)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected real env to win over .env, got %q", cfg.Auth.JWTSecret)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearLedgerEnv(t)
	dir := t.TempDir()
	yaml := "server:\n  addr: 0.0.0.0:9999\nstorage:\n  bucket: ledger-exports\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:9999" || cfg.Storage.Bucket != "ledger-exports" {
		t.Fatalf("config file not applied: addr=%q bucket=%q", cfg.Server.Addr, cfg.Storage.Bucket)
	}
}

func TestLoad_RejectsNonPositiveTTL(t *testing.T) {
	clearLedgerEnv(t)
	setEnvWithCleanup(t, "LEDGER_AUTH_TOKENTTLMINUTES", "0")

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for zero token ttl")
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
