package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DefaultSlotMinutes != 30 {
		t.Errorf("expected default slot minutes 30, got %d", cfg.DefaultSlotMinutes)
	}
	if cfg.BulkReplaceTimeout != 5*time.Second {
		t.Errorf("expected 5s replace timeout, got %s", cfg.BulkReplaceTimeout)
	}
	if cfg.BulkCreateTimeout != 15*time.Second {
		t.Errorf("expected 15s create timeout, got %s", cfg.BulkCreateTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_SLOT_MINUTES", "15")
	t.Setenv("BULK_CREATE_TIMEOUT", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_LIMIT_RPS", "5.5")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.DefaultSlotMinutes != 15 {
		t.Errorf("expected slot minutes 15, got %d", cfg.DefaultSlotMinutes)
	}
	if cfg.BulkCreateTimeout != 30*time.Second {
		t.Errorf("expected 30s create timeout, got %s", cfg.BulkCreateTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitRPS != 5.5 {
		t.Errorf("expected rps 5.5, got %v", cfg.RateLimitRPS)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DEFAULT_SLOT_MINUTES", "abc")
	t.Setenv("BULK_REPLACE_TIMEOUT", "nope")

	cfg := Load()

	if cfg.DefaultSlotMinutes != 30 {
		t.Errorf("expected fallback 30, got %d", cfg.DefaultSlotMinutes)
	}
	if cfg.BulkReplaceTimeout != 5*time.Second {
		t.Errorf("expected fallback 5s, got %s", cfg.BulkReplaceTimeout)
	}
}
