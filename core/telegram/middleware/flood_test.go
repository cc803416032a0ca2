package middleware

import (
	"testing"
	"time"
)

func TestGuardSecondHitInsideWindowRejected(t *testing.T) {
	g := NewGuard(700 * time.Millisecond)

	if !g.Allow(1) {
		t.Fatal("first action must pass")
	}
	if g.Allow(1) {
		t.Fatal("second action inside the window must be rejected")
	}
	// A different actor is independent.
	if !g.Allow(2) {
		t.Fatal("other actor must not be throttled")
	}
}

func TestGuardAllowsAfterWindow(t *testing.T) {
	g := NewGuard(500 * time.Millisecond)
	base := time.Unix(1000, 0)
	g.now = func() time.Time { return base }

	if !g.Allow(7) {
		t.Fatal("first action must pass")
	}
	g.now = func() time.Time { return base.Add(499 * time.Millisecond) }
	if g.Allow(7) {
		t.Fatal("action just inside the window must be rejected")
	}
	g.now = func() time.Time { return base.Add(501 * time.Millisecond) }
	if !g.Allow(7) {
		t.Fatal("action after the window must pass")
	}
}

func TestGuardRejectionDoesNotRefreshTimestamp(t *testing.T) {
	g := NewGuard(1 * time.Second)
	base := time.Unix(2000, 0)
	g.now = func() time.Time { return base }
	g.Allow(9)

	// Hammering inside the window must not extend it.
	g.now = func() time.Time { return base.Add(900 * time.Millisecond) }
	g.Allow(9)
	g.now = func() time.Time { return base.Add(1100 * time.Millisecond) }
	if !g.Allow(9) {
		t.Fatal("window must be measured from the last accepted action")
	}
}

func TestGuardSweep(t *testing.T) {
	g := NewGuard(time.Second)
	base := time.Unix(3000, 0)
	g.now = func() time.Time { return base }
	g.Allow(1)
	g.Allow(2)

	g.now = func() time.Time { return base.Add(3 * time.Second) }
	g.Allow(3)

	if evicted := g.Sweep(2 * time.Second); evicted != 2 {
		t.Fatalf("evicted = %d, want 2", evicted)
	}
	if g.Len() != 1 {
		t.Fatalf("len = %d, want 1", g.Len())
	}
}
