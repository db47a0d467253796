package schedule

import (
	"errors"
	"testing"
	"time"
)

var activeFrom = time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)

func TestNewEveryXHours(t *testing.T) {
	r, err := NewEveryXHours("med-1", 8, activeFrom)
	if err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}
	if r.Kind != KindEveryXHours || r.IntervalHours != 8 {
		t.Errorf("unexpected rule: kind=%s interval=%d", r.Kind, r.IntervalHours)
	}
	if r.ID == "" {
		t.Error("rule ID not assigned")
	}
}

func TestNewEveryXHoursRejectsOutOfRange(t *testing.T) {
	for _, hours := range []int{0, -1, 25} {
		if _, err := NewEveryXHours("med-1", hours, activeFrom); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("interval %dh: want ErrInvalidRule, got %v", hours, err)
		}
	}
}

func TestNewEveryXHoursRequiresMedicationAndActiveFrom(t *testing.T) {
	if _, err := NewEveryXHours("", 8, activeFrom); err == nil {
		t.Error("missing medication ID accepted")
	}
	if _, err := NewEveryXHours("med-1", 8, time.Time{}); err == nil {
		t.Error("zero activeFrom accepted")
	}
}

func TestNewTimesPerDayRejectsTooMany(t *testing.T) {
	times := []TimeOfDay{
		{6, 0}, {9, 0}, {12, 0}, {15, 0}, {18, 0}, {21, 0},
	}
	if _, err := NewTimesPerDay("med-1", times, activeFrom); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("6 times per day: want ErrInvalidRule, got %v", err)
	}
}

func TestNewTimesPerDayNormalizes(t *testing.T) {
	times := []TimeOfDay{{21, 0}, {9, 0}, {9, 0}}
	r, err := NewTimesPerDay("med-1", times, activeFrom)
	if err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}
	if len(r.Times) != 2 {
		t.Fatalf("want 2 times after dedup, got %d", len(r.Times))
	}
	if r.Times[0] != (TimeOfDay{9, 0}) || r.Times[1] != (TimeOfDay{21, 0}) {
		t.Errorf("times not sorted: %v", r.Times)
	}
}

func TestNewSpecificTimesRejectsEmpty(t *testing.T) {
	if _, err := NewSpecificTimes("med-1", nil, activeFrom); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("empty times: want ErrInvalidRule, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:30", TimeOfDay{9, 30}, false},
		{"00:00", TimeOfDay{0, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"noon", TimeOfDay{}, true},
	}
	for _, tc := range tests {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): want error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidateLoadedRule(t *testing.T) {
	bad := Rule{
		ID:           "r1",
		MedicationID: "med-1",
		Kind:         KindEveryXHours,
		ActiveFrom:   activeFrom,
		// interval missing
	}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("want ErrInvalidRule, got %v", err)
	}

	unknown := Rule{ID: "r2", MedicationID: "med-1", Kind: "weekly", ActiveFrom: activeFrom}
	if err := unknown.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("unknown kind: want ErrInvalidRule, got %v", err)
	}
}
