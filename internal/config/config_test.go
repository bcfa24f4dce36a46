package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SERVICE_MINUTES_PER_CUSTOMER", "BASE_WAIT_MINUTES", "QUEUE_TIMEZONE", "ALLOW_DUPLICATE_CHECKIN", "RECONCILE_SCHEDULE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.ServiceMinutes != 30 || cfg.BaseWaitMinutes != 15 {
		t.Fatalf("unexpected estimator defaults %d/%d", cfg.ServiceMinutes, cfg.BaseWaitMinutes)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("expected UTC, got %v", cfg.Location)
	}
	if cfg.AllowDuplicateCheckIn {
		t.Fatalf("duplicate check-in should be rejected by default")
	}
	if cfg.ReconcileSchedule != "@every 1m" {
		t.Fatalf("unexpected schedule %q", cfg.ReconcileSchedule)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVICE_MINUTES_PER_CUSTOMER", "20")
	t.Setenv("BASE_WAIT_MINUTES", "not-a-number")
	t.Setenv("ALLOW_DUPLICATE_CHECKIN", "true")
	t.Setenv("QUEUE_TIMEZONE", "Nowhere/Invalid")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "0")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port override, got %q", cfg.Port)
	}
	if cfg.ServiceMinutes != 20 {
		t.Fatalf("expected 20 minutes, got %d", cfg.ServiceMinutes)
	}
	if cfg.BaseWaitMinutes != 15 {
		t.Fatalf("malformed value should fall back, got %d", cfg.BaseWaitMinutes)
	}
	if !cfg.AllowDuplicateCheckIn {
		t.Fatalf("expected duplicate check-in allowed")
	}
	if cfg.Location != time.UTC {
		t.Fatalf("unknown zone should fall back to UTC, got %v", cfg.Location)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("non-positive timeout should fall back to 10s, got %v", cfg.ShutdownTimeout)
	}
}
