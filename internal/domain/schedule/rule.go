// Package schedule implements recurrence rules and dose instance generation.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind tags the rule variant
type Kind string

const (
	KindEveryXHours   Kind = "every_x_hours"
	KindTimesPerDay   Kind = "times_per_day"
	KindSpecificTimes Kind = "specific_times"
)

const (
	minIntervalHours = 1
	maxIntervalHours = 24
	maxTimesPerDay   = 5
)

var (
	ErrInvalidRule  = errors.New("invalid schedule rule")
	ErrNoActiveRule = errors.New("no active schedule rule")
)

// TimeOfDay is a wall-clock time within a calendar day
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: bad time of day %q", ErrInvalidRule, s)
	}
	t := TimeOfDay{Hour: h, Minute: m}
	if !t.valid() {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q out of range", ErrInvalidRule, s)
	}
	return t, nil
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On anchors the wall-clock time onto the calendar day of d
func (t TimeOfDay) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, d.Location())
}

func (t TimeOfDay) before(o TimeOfDay) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

// Rule is the single active recurrence rule of a non-PRN medication.
// Exactly one variant's fields are populated, selected by Kind; the
// constructors validate at build time so a stored rule is always sound.
type Rule struct {
	ID           string
	MedicationID string
	Kind         Kind

	// IntervalHours is set for KindEveryXHours
	IntervalHours int
	// Times is set for KindTimesPerDay and KindSpecificTimes, kept
	// sorted ascending with duplicates removed
	Times []TimeOfDay

	// ActiveFrom bounds generation: no instance is ever due before it
	ActiveFrom time.Time
}

// NewEveryXHours builds an interval rule recurring every hours hours
func NewEveryXHours(medicationID string, hours int, activeFrom time.Time) (Rule, error) {
	if medicationID == "" || activeFrom.IsZero() {
		return Rule{}, ErrInvalidRule
	}
	if hours < minIntervalHours || hours > maxIntervalHours {
		return Rule{}, fmt.Errorf("%w: interval %dh out of range 1..24", ErrInvalidRule, hours)
	}
	return Rule{
		ID:            uuid.NewString(),
		MedicationID:  medicationID,
		Kind:          KindEveryXHours,
		IntervalHours: hours,
		ActiveFrom:    activeFrom,
	}, nil
}

// NewTimesPerDay builds a rule with a fixed count of daily clock times
func NewTimesPerDay(medicationID string, times []TimeOfDay, activeFrom time.Time) (Rule, error) {
	normalized, err := normalizeTimes(times)
	if err != nil {
		return Rule{}, err
	}
	if medicationID == "" || activeFrom.IsZero() {
		return Rule{}, ErrInvalidRule
	}
	if len(normalized) > maxTimesPerDay {
		return Rule{}, fmt.Errorf("%w: %d times per day exceeds max %d", ErrInvalidRule, len(normalized), maxTimesPerDay)
	}
	return Rule{
		ID:           uuid.NewString(),
		MedicationID: medicationID,
		Kind:         KindTimesPerDay,
		Times:        normalized,
		ActiveFrom:   activeFrom,
	}, nil
}

// NewSpecificTimes builds a rule from an arbitrary non-empty set of clock
// times. Generation is identical to TimesPerDay; the kinds differ only in
// how the caregiver entered the schedule.
func NewSpecificTimes(medicationID string, times []TimeOfDay, activeFrom time.Time) (Rule, error) {
	normalized, err := normalizeTimes(times)
	if err != nil {
		return Rule{}, err
	}
	if medicationID == "" || activeFrom.IsZero() {
		return Rule{}, ErrInvalidRule
	}
	return Rule{
		ID:           uuid.NewString(),
		MedicationID: medicationID,
		Kind:         KindSpecificTimes,
		Times:        normalized,
		ActiveFrom:   activeFrom,
	}, nil
}

func normalizeTimes(times []TimeOfDay) ([]TimeOfDay, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: at least one time of day required", ErrInvalidRule)
	}
	seen := make(map[TimeOfDay]bool, len(times))
	out := make([]TimeOfDay, 0, len(times))
	for _, t := range times {
		if !t.valid() {
			return nil, fmt.Errorf("%w: time of day %s out of range", ErrInvalidRule, t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out, nil
}

// Validate re-checks an already-built rule, for rules loaded from storage
func (r Rule) Validate() error {
	switch r.Kind {
	case KindEveryXHours:
		if r.IntervalHours < minIntervalHours || r.IntervalHours > maxIntervalHours {
			return ErrInvalidRule
		}
	case KindTimesPerDay:
		if len(r.Times) == 0 || len(r.Times) > maxTimesPerDay {
			return ErrInvalidRule
		}
	case KindSpecificTimes:
		if len(r.Times) == 0 {
			return ErrInvalidRule
		}
	default:
		return ErrInvalidRule
	}
	if r.MedicationID == "" || r.ActiveFrom.IsZero() {
		return ErrInvalidRule
	}
	return nil
}
