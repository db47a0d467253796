package schedule

import (
	"testing"
	"time"

	"github.com/medikid/go-doseflow/internal/domain/medication"
)

func testMed() medication.Medication {
	return medication.Medication{
		ID:          "med-1",
		ChildID:     "child-1",
		CaregiverID: "cg-1",
		Name:        "amoxicillin",
		DoseAmount:  5,
		DoseUnit:    medication.UnitMilliliter,
		Route:       medication.RouteOral,
	}
}

func TestGenerateIntervalSpacing(t *testing.T) {
	af := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	r, err := NewEveryXHours("med-1", 8, af)
	if err != nil {
		t.Fatal(err)
	}

	now := af.Add(-time.Hour)
	drafts := Generate(testMed(), r, now, now.Add(49*time.Hour))

	// 08:00 day1 through 08:00 day3 inclusive
	if len(drafts) != 7 {
		t.Fatalf("want 7 drafts, got %d", len(drafts))
	}
	for i, d := range drafts {
		want := af.Add(time.Duration(i) * 8 * time.Hour)
		if !d.DueAt.Equal(want) {
			t.Errorf("draft %d due %v, want %v", i, d.DueAt, want)
		}
	}
}

func TestGenerateIntervalAnchorsToActiveFrom(t *testing.T) {
	af := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r, err := NewEveryXHours("med-1", 8, af)
	if err != nil {
		t.Fatal(err)
	}

	// Two sweeps hours apart must land on the same grid.
	nowA := af.Add(10 * time.Hour)
	nowB := af.Add(13 * time.Hour)
	horizon := af.Add(48 * time.Hour)

	a := Generate(testMed(), r, nowA, horizon)
	b := Generate(testMed(), r, nowB, horizon)

	if len(a) == 0 || len(b) == 0 {
		t.Fatal("expected drafts from both sweeps")
	}
	if want := af.Add(16 * time.Hour); !a[0].DueAt.Equal(want) {
		t.Errorf("sweep A first due %v, want %v", a[0].DueAt, want)
	}
	if !b[0].DueAt.Equal(a[0].DueAt) {
		t.Errorf("sweeps disagree on first due: %v vs %v", a[0].DueAt, b[0].DueAt)
	}
}

func TestGenerateNeverEmitsPast(t *testing.T) {
	af := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	now := af.Add(30 * time.Hour)

	interval, _ := NewEveryXHours("med-1", 4, af)
	clock, _ := NewTimesPerDay("med-1", []TimeOfDay{{8, 0}, {20, 0}}, af)

	for _, r := range []Rule{interval, clock} {
		for _, d := range Generate(testMed(), r, now, now.Add(72*time.Hour)) {
			if !d.DueAt.After(now) {
				t.Errorf("rule %s emitted non-future due %v (now %v)", r.Kind, d.DueAt, now)
			}
		}
	}
}

func TestGenerateSpecificTimesAcrossDays(t *testing.T) {
	// Rule active from 07:00; generating from 07:00 across two full days
	// should yield 09:00 and 21:00 on each day.
	af := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	r, err := NewSpecificTimes("med-1", []TimeOfDay{{9, 0}, {21, 0}}, af)
	if err != nil {
		t.Fatal(err)
	}

	drafts := Generate(testMed(), r, af, af.Add(48*time.Hour))
	if len(drafts) != 4 {
		t.Fatalf("want 4 drafts, got %d", len(drafts))
	}

	want := []time.Time{
		time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 21, 0, 0, 0, time.UTC),
	}
	for i, d := range drafts {
		if !d.DueAt.Equal(want[i]) {
			t.Errorf("draft %d due %v, want %v", i, d.DueAt, want[i])
		}
	}
}

func TestGenerateSkipsSameDayPastTimes(t *testing.T) {
	af := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	r, _ := NewTimesPerDay("med-1", []TimeOfDay{{9, 0}, {21, 0}}, af)

	// At 10:00 the 09:00 slot is gone; 21:00 is still coming.
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	drafts := Generate(testMed(), r, now, now.Add(14*time.Hour))

	if len(drafts) != 1 {
		t.Fatalf("want 1 draft, got %d", len(drafts))
	}
	if want := time.Date(2025, 3, 1, 21, 0, 0, 0, time.UTC); !drafts[0].DueAt.Equal(want) {
		t.Errorf("due %v, want %v", drafts[0].DueAt, want)
	}
}

func TestGenerateTimesPerDayBound(t *testing.T) {
	af := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	times := []TimeOfDay{{6, 0}, {12, 0}, {18, 0}}
	r, _ := NewTimesPerDay("med-1", times, af)

	days := 5
	drafts := Generate(testMed(), r, af, af.AddDate(0, 0, days))
	if max := len(times) * (days + 1); len(drafts) > max {
		t.Errorf("generated %d drafts, bound is %d", len(drafts), max)
	}
}

func TestGenerateSkipsPRNAndInvalid(t *testing.T) {
	af := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r, _ := NewEveryXHours("med-1", 6, af)

	prn := testMed()
	prn.PRN = true
	if got := Generate(prn, r, af, af.Add(24*time.Hour)); got != nil {
		t.Errorf("PRN medication generated %d drafts", len(got))
	}

	if got := Generate(testMed(), Rule{}, af, af.Add(24*time.Hour)); got != nil {
		t.Errorf("invalid rule generated %d drafts", len(got))
	}

	if got := Generate(testMed(), r, af, af); got != nil {
		t.Errorf("empty horizon generated %d drafts", len(got))
	}
}

func TestGenerateSnapshotsDose(t *testing.T) {
	af := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r, _ := NewEveryXHours("med-1", 12, af)

	med := testMed()
	med.DoseAmount = 7.5
	med.DoseUnit = medication.UnitMilligram

	drafts := Generate(med, r, af, af.Add(24*time.Hour))
	if len(drafts) == 0 {
		t.Fatal("no drafts generated")
	}
	for _, d := range drafts {
		if d.Amount != 7.5 || d.Unit != medication.UnitMilligram {
			t.Errorf("draft did not snapshot dose: %v %s", d.Amount, d.Unit)
		}
		if !d.WindowStart.Equal(d.DueAt.Add(-AcceptanceWindow)) || !d.WindowEnd.Equal(d.DueAt.Add(AcceptanceWindow)) {
			t.Errorf("acceptance window wrong for due %v", d.DueAt)
		}
	}
}
