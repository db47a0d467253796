// Package idempotency provides deterministic keys for deduplicating
// generated dose instances. Uses Hash(MedicationID+DueTime) so that
// concurrent horizon sweeps regenerating the same slot collide on the
// key instead of inserting twice.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SlotKey creates a deterministic key for one scheduled dose slot.
// The due time is normalized to UTC and truncated to the minute, which
// is the granularity schedules are expressed in; sub-minute drift
// between sweeps must not mint a new slot.
func SlotKey(medicationID string, dueAt time.Time) string {
	normalized := dueAt.UTC().Truncate(time.Minute).Format(time.RFC3339)

	data := strings.Join([]string{medicationID, normalized}, "|")
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
