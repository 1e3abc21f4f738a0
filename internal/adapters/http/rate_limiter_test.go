package http

import (
	"testing"
	"time"

	"github.com/dkeye/huddle/internal/clock"
)

func TestClientRateLimiterWindow(t *testing.T) {
	fc := clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rl := NewClientRateLimiter(2, 10*time.Second, fc)

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two calls must pass")
	}
	if rl.Allow("a") {
		t.Fatal("third call inside the window must be refused")
	}
	if !rl.Allow("b") {
		t.Fatal("limits are per client")
	}
	fc.Advance(11 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("window did not slide")
	}
}

func TestClientRateLimiterForgetsIdleClients(t *testing.T) {
	fc := clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rl := NewClientRateLimiter(2, 10*time.Second, fc)

	for _, tok := range []string{"a", "b", "c"} {
		rl.Allow(tok)
	}
	fc.Advance(11 * time.Second)
	rl.Allow("d")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.history) != 1 {
		t.Fatalf("history keeps %d clients, want only the active one", len(rl.history))
	}
	if _, ok := rl.history["d"]; !ok {
		t.Fatal("active client was dropped")
	}
}
