package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "Production")
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "/tmp/rescue.db")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REQ_TIMEOUT_SEC", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RATE_USER_WRITE", "5")

	cfg := NewConfig()
	cfg.LoadFromEnvironment()

	if cfg.Env != "production" || cfg.IsDevelopment() {
		t.Fatalf("expected production env, got %q", cfg.Env)
	}
	if cfg.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "/tmp/rescue.db" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.RequestTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateWritePerMinute != 5 {
		t.Fatalf("expected write budget 5, got %d", cfg.RateWritePerMinute)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing JWT secret to fail validation")
	}

	cfg.JWTSecret = "x"
	cfg.Database.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unsupported driver to fail validation")
	}

	cfg.Database.Driver = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected sqlite without DSN to fail validation")
	}
}
