package idempotency

import (
	"testing"
	"time"
)

func TestSlotKeyDeterministic(t *testing.T) {
	due := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	a := SlotKey("med-1", due)
	b := SlotKey("med-1", due)
	if a != b {
		t.Error("same inputs produced different keys")
	}
	if len(a) != 64 {
		t.Errorf("key length %d, want 64 hex chars", len(a))
	}
}

func TestSlotKeyNormalizesTime(t *testing.T) {
	due := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// Sub-minute drift collapses onto the same slot.
	drifted := due.Add(30 * time.Second)
	if SlotKey("med-1", due) != SlotKey("med-1", drifted) {
		t.Error("sub-minute drift minted a new slot")
	}

	// Same instant in another zone is the same slot.
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	if SlotKey("med-1", due) != SlotKey("med-1", due.In(paris)) {
		t.Error("timezone representation changed the slot")
	}
}

func TestSlotKeyDistinguishes(t *testing.T) {
	due := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	if SlotKey("med-1", due) == SlotKey("med-2", due) {
		t.Error("different medications share a slot")
	}
	if SlotKey("med-1", due) == SlotKey("med-1", due.Add(time.Minute)) {
		t.Error("different minutes share a slot")
	}
}
