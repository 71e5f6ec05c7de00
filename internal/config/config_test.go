package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "DEFAULT_CURRENCY", "RECONCILE_CRON", "JWT_EXPIRES_IN"} {
		t.Setenv(key, "")
	}
	os.Unsetenv("RECONCILE_CRON")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.Env != "development" {
		t.Errorf("unexpected server defaults: port=%s env=%s", cfg.Port, cfg.Env)
	}
	if cfg.DefaultCurrency != "BRL" {
		t.Errorf("expected BRL, got %s", cfg.DefaultCurrency)
	}
	if cfg.ReconcileCron != "@daily" {
		t.Errorf("expected @daily, got %s", cfg.ReconcileCron)
	}
	if cfg.JWTExpirationDur != 24*time.Hour {
		t.Errorf("expected 24h, got %s", cfg.JWTExpirationDur)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RECONCILE_CRON", "0 3 * * *")
	t.Setenv("DEFAULT_CURRENCY", "USD")
	t.Setenv("JWT_EXPIRES_IN", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReconcileCron != "0 3 * * *" || cfg.DefaultCurrency != "USD" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.JWTExpirationDur != 24*time.Hour {
		t.Errorf("invalid duration should fall back to 24h, got %s", cfg.JWTExpirationDur)
	}
	if Get() != cfg {
		t.Error("Get should return the last loaded config")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{Env: "production", JWTSecret: "s3cret", DefaultCurrency: "BRL", ReconcileCron: "@every 1h"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown_currency", func(c *Config) { c.DefaultCurrency = "XYZ" }},
		{"bad_cron", func(c *Config) { c.ReconcileCron = "every day" }},
		{"dev_secret_in_production", func(c *Config) { c.JWTSecret = devJWTSecret }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	disabled := valid
	disabled.ReconcileCron = ""
	if err := disabled.Validate(); err != nil {
		t.Errorf("empty schedule should be allowed: %v", err)
	}
}

func TestLoadRejectsInvalidCurrency(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "zzz")
	if _, err := Load(); err == nil {
		t.Error("expected Load to fail on an unknown currency")
	}
}

func TestLoadEmptyCronDisablesSchedule(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "")
	t.Setenv("RECONCILE_CRON", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReconcileCron != "" {
		t.Errorf("expected the schedule to be disabled, got %q", cfg.ReconcileCron)
	}
}

func TestLoadPoolSettings(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "")
	t.Setenv("DB_MAX_OPEN_CONNS", "40")
	t.Setenv("DB_MAX_IDLE_CONNS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBMaxOpenConns != 40 || cfg.DBMaxIdleConns != 5 {
		t.Errorf("unexpected pool settings: open=%d idle=%d", cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	}

	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	if _, err := Load(); err == nil {
		t.Error("expected a non-numeric pool size to be rejected")
	}
}
