package natsconn

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestOptions_Defaults(t *testing.T) {
	t.Setenv("NATS_URL", "")
	t.Setenv("NATS_MAX_RECONNECTS", "")
	t.Setenv("NATS_RECONNECT_WAIT", "")

	o := Options{}.withDefaults()
	if o.URL != nats.DefaultURL {
		t.Fatalf("expected default URL, got %q", o.URL)
	}
	if o.Name != "commentsvc" {
		t.Fatalf("expected connection name commentsvc, got %q", o.Name)
	}
	if o.MaxReconnects != 10 {
		t.Fatalf("expected 10 reconnects, got %d", o.MaxReconnects)
	}
	if o.ReconnectWait != 2*time.Second {
		t.Fatalf("expected 2s reconnect wait, got %s", o.ReconnectWait)
	}
}

func TestOptions_EnvOverrides(t *testing.T) {
	t.Setenv("NATS_URL", "nats://queue.internal:4222")
	t.Setenv("NATS_MAX_RECONNECTS", "3")
	t.Setenv("NATS_RECONNECT_WAIT", "250ms")

	o := Options{}.withDefaults()
	if o.URL != "nats://queue.internal:4222" {
		t.Fatalf("unexpected URL %q", o.URL)
	}
	if o.MaxReconnects != 3 {
		t.Fatalf("expected 3 reconnects, got %d", o.MaxReconnects)
	}
	if o.ReconnectWait != 250*time.Millisecond {
		t.Fatalf("expected 250ms wait, got %s", o.ReconnectWait)
	}
}

func TestOptions_ExplicitBeatsEnv(t *testing.T) {
	t.Setenv("NATS_URL", "nats://queue.internal:4222")

	o := Options{URL: "nats://other:4222", Name: "worker"}.withDefaults()
	if o.URL != "nats://other:4222" {
		t.Fatalf("explicit URL lost: %q", o.URL)
	}
	if o.Name != "worker" {
		t.Fatalf("explicit name lost: %q", o.Name)
	}
}

func TestOptions_GarbageEnvFallsBack(t *testing.T) {
	t.Setenv("NATS_MAX_RECONNECTS", "minus one")
	t.Setenv("NATS_RECONNECT_WAIT", "-5s")

	o := Options{}.withDefaults()
	if o.MaxReconnects != 10 {
		t.Fatalf("expected fallback reconnects, got %d", o.MaxReconnects)
	}
	if o.ReconnectWait != 2*time.Second {
		t.Fatalf("expected fallback wait, got %s", o.ReconnectWait)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(Options{
		URL:           "nats://127.0.0.1:19999",
		ReconnectWait: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected dial error for unreachable broker")
	}
}
