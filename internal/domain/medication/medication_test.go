package medication

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func validInput() NewInput {
	return NewInput{
		ChildID:     "child-1",
		CaregiverID: "cg-1",
		Name:        "  paracetamol ",
		DoseAmount:  2.5,
		DoseUnit:    UnitMilliliter,
		Route:       RouteOral,
	}
}

func TestNew(t *testing.T) {
	m, err := New(validInput(), now)
	if err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if m.ID == "" {
		t.Error("ID not assigned")
	}
	if m.Name != "paracetamol" {
		t.Errorf("name not trimmed: %q", m.Name)
	}
	if !m.StartedAt.Equal(now) {
		t.Errorf("StartedAt defaulted to %v, want %v", m.StartedAt, now)
	}
	if !m.Active() {
		t.Error("new medication should be active")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NewInput)
	}{
		{"missing child", func(in *NewInput) { in.ChildID = " " }},
		{"missing caregiver", func(in *NewInput) { in.CaregiverID = "" }},
		{"missing name", func(in *NewInput) { in.Name = "" }},
		{"zero amount", func(in *NewInput) { in.DoseAmount = 0 }},
		{"negative amount", func(in *NewInput) { in.DoseAmount = -1 }},
		{"bad unit", func(in *NewInput) { in.DoseUnit = "gallon" }},
		{"bad route", func(in *NewInput) { in.Route = "intravenous" }},
	}

	for _, tc := range tests {
		in := validInput()
		tc.mutate(&in)
		if _, err := New(in, now); !errors.Is(err, ErrInvalidMedication) {
			t.Errorf("%s: want ErrInvalidMedication, got %v", tc.name, err)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m, _ := New(validInput(), now)

	first := now.Add(time.Hour)
	m.Stop(first)
	if m.Active() {
		t.Fatal("stopped medication still active")
	}

	m.Stop(now.Add(2 * time.Hour))
	if !m.StoppedAt.Equal(first) {
		t.Errorf("second stop moved StoppedAt to %v", m.StoppedAt)
	}
}
