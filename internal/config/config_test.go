package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.APIPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.APIPort)
	}
	if cfg.DefaultPageSize != 50 {
		t.Fatalf("expected default page size 50, got %d", cfg.DefaultPageSize)
	}
	if cfg.NATSSubject != "instances.stored" {
		t.Fatalf("unexpected subject %s", cfg.NATSSubject)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_PORT", "9999")
	t.Setenv("DEFAULT_PAGE_SIZE", "25")
	t.Setenv("DEFAULT_PAGE_SIZE_BOGUS", "x")

	cfg := Load()
	if cfg.APIPort != "9999" {
		t.Fatalf("expected 9999, got %s", cfg.APIPort)
	}
	if cfg.DefaultPageSize != 25 {
		t.Fatalf("expected 25, got %d", cfg.DefaultPageSize)
	}
}

func TestLoadIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("DEFAULT_PAGE_SIZE", "not-a-number")
	cfg := Load()
	if cfg.DefaultPageSize != 50 {
		t.Fatalf("expected fallback 50, got %d", cfg.DefaultPageSize)
	}
}
