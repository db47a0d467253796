package schedule

import (
	"time"

	"github.com/medikid/go-doseflow/internal/domain/medication"
)

// AcceptanceWindow is the half-width of the window around a due time in
// which a dose counts as on time.
const AcceptanceWindow = 30 * time.Minute

// Draft is a dose instance the generator wants to exist. The dose amount
// and unit are snapshotted from the medication at generation time so later
// medication edits never rewrite history.
type Draft struct {
	MedicationID string
	ScheduleID   string
	ChildID      string
	CaregiverID  string
	DueAt        time.Time
	WindowStart  time.Time
	WindowEnd    time.Time
	Amount       float64
	Unit         medication.Unit
}

// Generate expands a rule into the dose instance drafts that should exist
// between now and horizonEnd. Pure function of (med, rule, now, horizonEnd):
// regenerating with unchanged inputs yields the same due times, which is
// what makes concurrent horizon sweeps safe to deduplicate by slot.
//
// No draft is ever due at or before now: clock times already past today
// are skipped for today and picked up again on subsequent days.
func Generate(med medication.Medication, r Rule, now, horizonEnd time.Time) []Draft {
	if med.PRN || r.Validate() != nil || !horizonEnd.After(now) {
		return nil
	}

	switch r.Kind {
	case KindEveryXHours:
		return generateInterval(med, r, now, horizonEnd)
	case KindTimesPerDay, KindSpecificTimes:
		return generateClockTimes(med, r, now, horizonEnd)
	}
	return nil
}

func generateInterval(med medication.Medication, r Rule, now, horizonEnd time.Time) []Draft {
	step := time.Duration(r.IntervalHours) * time.Hour

	// The cadence stays anchored to ActiveFrom; sweeps at different times
	// must land on the same due times or slot dedup falls apart.
	start := r.ActiveFrom
	if !start.After(now) {
		steps := int64(now.Sub(r.ActiveFrom)/step) + 1
		start = r.ActiveFrom.Add(time.Duration(steps) * step)
	}

	var drafts []Draft
	for t := start; !t.After(horizonEnd); t = t.Add(step) {
		drafts = append(drafts, newDraft(med, r, t))
	}
	return drafts
}

func generateClockTimes(med medication.Medication, r Rule, now, horizonEnd time.Time) []Draft {
	day := startOfDay(now)
	if af := startOfDay(r.ActiveFrom); af.After(day) {
		day = af
	}

	var drafts []Draft
	for ; !day.After(horizonEnd); day = day.AddDate(0, 0, 1) {
		for _, tod := range r.Times {
			due := tod.On(day)
			if !due.After(now) || due.Before(r.ActiveFrom) || due.After(horizonEnd) {
				continue
			}
			drafts = append(drafts, newDraft(med, r, due))
		}
	}
	return drafts
}

func newDraft(med medication.Medication, r Rule, due time.Time) Draft {
	return Draft{
		MedicationID: med.ID,
		ScheduleID:   r.ID,
		ChildID:      med.ChildID,
		CaregiverID:  med.CaregiverID,
		DueAt:        due,
		WindowStart:  due.Add(-AcceptanceWindow),
		WindowEnd:    due.Add(AcceptanceWindow),
		Amount:       med.DoseAmount,
		Unit:         med.DoseUnit,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
