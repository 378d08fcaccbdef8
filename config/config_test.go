package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	doc := `{"enable-automatic-connections": true, "heartbeat-interval": 50000000}`
	opts, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !opts.EnableAutomaticConnections {
		t.Fatal("expected automatic connections enabled")
	}
	if opts.HeartbeatInterval != 50*time.Millisecond {
		t.Fatalf("got %v, want 50ms", opts.HeartbeatInterval)
	}
}

func TestEffectiveConnectionTimeoutDerivesFromHeartbeat(t *testing.T) {
	opts := Default()
	opts.HeartbeatInterval = 50 * time.Millisecond
	if got := opts.EffectiveConnectionTimeout(); got != 150*time.Millisecond {
		t.Fatalf("got %v, want 150ms", got)
	}
}

func TestEffectiveConnectionTimeoutExplicitWins(t *testing.T) {
	opts := Default()
	opts.HeartbeatInterval = 50 * time.Millisecond
	opts.ConnectionTimeout = 10 * time.Second
	if got := opts.EffectiveConnectionTimeout(); got != 10*time.Second {
		t.Fatalf("got %v, want 10s", got)
	}
}
