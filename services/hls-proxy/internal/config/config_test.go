package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "hls-proxy")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PROXY_ALLOWED_HOSTS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.App.HTTP.Addr != ":8084" {
		t.Fatalf("unexpected addr %q", cfg.App.HTTP.Addr)
	}
	if cfg.MaxAttempts != 3 || cfg.AttemptTimeout != 12*time.Second || cfg.CookieCapacity != 500 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DefaultReferer != "https://megacloud.blog/" {
		t.Fatalf("unexpected referer %q", cfg.DefaultReferer)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "hls-proxy")
	t.Setenv("PROXY_ALLOWED_HOSTS", "cdn-a.example, cdn-b.example")
	t.Setenv("PROXY_MAX_ATTEMPTS", "5")
	t.Setenv("PROXY_RETRY_DELAY", "200ms")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AllowedHosts) != 2 || cfg.AllowedHosts[1] != "cdn-b.example" {
		t.Fatalf("unexpected hosts %v", cfg.AllowedHosts)
	}
	if cfg.MaxAttempts != 5 || cfg.RetryDelay != 200*time.Millisecond {
		t.Fatalf("unexpected retry settings %+v", cfg)
	}
}

func TestLoad_MissingServiceName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
