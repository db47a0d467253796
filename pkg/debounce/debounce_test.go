package debounce

import (
	"testing"
	"time"
)

func TestAllowRespectsInterval(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(5 * time.Minute).WithClock(func() time.Time { return now })

	if !l.Allow("cg-1") {
		t.Fatal("first call should be allowed")
	}
	if l.Allow("cg-1") {
		t.Error("second call inside interval should be blocked")
	}

	now = now.Add(4 * time.Minute)
	if l.Allow("cg-1") {
		t.Error("call before interval elapses should be blocked")
	}

	now = now.Add(time.Minute)
	if !l.Allow("cg-1") {
		t.Error("call after interval should be allowed")
	}
}

func TestAllowIsPerKey(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(5 * time.Minute).WithClock(func() time.Time { return now })

	if !l.Allow("cg-1") || !l.Allow("cg-2") {
		t.Error("distinct keys should not block each other")
	}
}

func TestReset(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(5 * time.Minute).WithClock(func() time.Time { return now })

	l.Allow("cg-1")
	l.Reset("cg-1")
	if !l.Allow("cg-1") {
		t.Error("reset key should be allowed immediately")
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(5 * time.Minute).WithClock(func() time.Time { return now })

	l.Allow("stale")
	now = now.Add(10 * time.Minute)
	l.Allow("fresh")

	if removed := l.Prune(); removed != 1 {
		t.Errorf("pruned %d entries, want 1", removed)
	}
	if l.Allow("fresh") {
		t.Error("fresh key should still be limited after prune")
	}
}
