package infra

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/comics")
	t.Setenv("AUTH_JWT_SECRET", "auth-secret")
	t.Setenv("PAYMENT_JWT_SECRET", "payment-secret")
	t.Setenv("STORAGE_DRIVER", "filesystem")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.NanoBananaBaseURL != "https://api.kie.ai/api/v1/jobs" {
		t.Fatalf("nano banana base url = %q", cfg.NanoBananaBaseURL)
	}
	if cfg.PollAttempts != 60 {
		t.Fatalf("poll attempts = %d, want 60", cfg.PollAttempts)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %s, want 5s", cfg.PollInterval)
	}
	if cfg.CleanupRetention != 24*time.Hour {
		t.Fatalf("cleanup retention = %s, want 24h", cfg.CleanupRetention)
	}
	if cfg.MinioBucket != "comic-uploads" {
		t.Fatalf("minio bucket = %q", cfg.MinioBucket)
	}
}

func TestLoadConfigMissingDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing DATABASE_URL")
	}
}

func TestLoadConfigMissingSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing PAYMENT_JWT_SECRET")
	}
}

func TestLoadConfigRejectsUnknownStorageDriver(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_DRIVER", "tape")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown storage driver")
	}
}

func TestLoadConfigMinioRequiresEndpoint(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("MINIO_ENDPOINT", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for minio driver without endpoint")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_MAX_ATTEMPTS", "10")
	t.Setenv("POLL_INTERVAL_SECONDS", "1")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollAttempts != 10 {
		t.Fatalf("poll attempts = %d", cfg.PollAttempts)
	}
	if cfg.PollInterval != time.Second {
		t.Fatalf("poll interval = %s", cfg.PollInterval)
	}
	if cfg.RateLimitPerMin != 5 {
		t.Fatalf("rate limit = %d", cfg.RateLimitPerMin)
	}
}
