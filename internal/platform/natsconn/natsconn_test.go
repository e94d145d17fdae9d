package natsconn

import (
	"testing"
	"time"
)

func TestDefaults_FromEnv(t *testing.T) {
	t.Setenv("NATS_URL", "nats://queue:4222")
	t.Setenv("NATS_MAX_RECONNECTS", "7")
	t.Setenv("NATS_RECONNECT_WAIT", "3s")

	var o Options
	o.defaults()
	if o.URL != "nats://queue:4222" {
		t.Fatalf("unexpected url %q", o.URL)
	}
	if o.MaxReconnects != 7 {
		t.Fatalf("expected 7, got %d", o.MaxReconnects)
	}
	if o.ReconnectWait != 3*time.Second {
		t.Fatalf("expected 3s, got %s", o.ReconnectWait)
	}
}

func TestEnabled_WithoutURL(t *testing.T) {
	t.Setenv("NATS_URL", "")
	if Enabled(Options{}) {
		t.Fatal("expected NATS to be disabled without a URL")
	}
	if !Enabled(Options{URL: "nats://127.0.0.1:4222"}) {
		t.Fatal("explicit URL should enable NATS")
	}
}

func TestConnect_NoURL(t *testing.T) {
	t.Setenv("NATS_URL", "")
	if _, err := Connect(Options{}); err == nil {
		t.Fatal("expected error without NATS_URL")
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		MaxReconnects: 1,
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected error connecting to invalid NATS URL")
	}
}
