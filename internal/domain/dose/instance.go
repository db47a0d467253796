// Package dose implements dose instances: their lifecycle, urgency
// classification, horizon maintenance and schedule reconciliation.
package dose

import (
	"time"

	"github.com/google/uuid"

	"github.com/medikid/go-doseflow/internal/domain/medication"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/pkg/idempotency"
)

// Status is the lifecycle state of a dose instance. Given and skipped
// are terminal; there is no path back to pending.
type Status string

const (
	StatusPending Status = "pending"
	StatusGiven   Status = "given"
	StatusSkipped Status = "skipped"
)

// Instance is a single scheduled occurrence of a medication dose.
// Amount and Unit are snapshots taken at generation time and never
// change afterwards.
type Instance struct {
	ID           string
	MedicationID string
	ScheduleID   string
	ChildID      string
	CaregiverID  string
	SlotKey      string
	DueAt        time.Time
	WindowStart  time.Time
	WindowEnd    time.Time
	Amount       float64
	Unit         medication.Unit
	Status       Status
	CreatedAt    time.Time
}

// FromDraft materializes a generator draft as a pending instance. The
// slot key is deterministic in (medication, due time) so duplicate
// inserts from concurrent sweeps collapse onto one row.
func FromDraft(d schedule.Draft, now time.Time) Instance {
	return Instance{
		ID:           uuid.NewString(),
		MedicationID: d.MedicationID,
		ScheduleID:   d.ScheduleID,
		ChildID:      d.ChildID,
		CaregiverID:  d.CaregiverID,
		SlotKey:      idempotency.SlotKey(d.MedicationID, d.DueAt),
		DueAt:        d.DueAt,
		WindowStart:  d.WindowStart,
		WindowEnd:    d.WindowEnd,
		Amount:       d.Amount,
		Unit:         d.Unit,
		Status:       StatusPending,
		CreatedAt:    now,
	}
}

// FromDrafts converts a batch of drafts
func FromDrafts(drafts []schedule.Draft, now time.Time) []Instance {
	if len(drafts) == 0 {
		return nil
	}
	out := make([]Instance, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, FromDraft(d, now))
	}
	return out
}
