package dose_test

import (
	"context"
	"testing"
	"time"

	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/pkg/debounce"
)

func newService(f *fixture, now time.Time) *dose.Service {
	m := dose.NewMaintainer(f.meds, f.schedules, f.instances, debounce.New(dose.SweepInterval).WithClock(clock(now)), nil).
		WithClock(clock(now))
	return dose.NewService(m, f.instances, f.meds, nil).WithClock(clock(now))
}

func TestDueListWindowAndOrder(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	ctx := context.Background()

	// Overdue, due and upcoming inside the window, plus one beyond it.
	overdue := f.addPendingInstance(t, med, testNow.Add(-time.Hour))
	dueNow := f.addPendingInstance(t, med, testNow.Add(5*time.Minute))
	upcoming := f.addPendingInstance(t, med, testNow.Add(45*time.Minute))
	f.addPendingInstance(t, med, testNow.Add(2*time.Hour))

	svc := newService(f, testNow)
	items, err := svc.Due(ctx, "cg-1")
	if err != nil {
		t.Fatal(err)
	}

	if len(items) != 3 {
		t.Fatalf("due list has %d items, want 3", len(items))
	}

	wantOrder := []struct {
		id      string
		urgency dose.Urgency
	}{
		{overdue.ID, dose.UrgencyOverdue},
		{dueNow.ID, dose.UrgencyDue},
		{upcoming.ID, dose.UrgencyUpcoming},
	}
	for i, w := range wantOrder {
		if items[i].Instance.ID != w.id {
			t.Errorf("position %d: got %s, want %s", i, items[i].Instance.ID, w.id)
		}
		if items[i].Urgency != w.urgency {
			t.Errorf("position %d: urgency %s, want %s", i, items[i].Urgency, w.urgency)
		}
		if items[i].MedicationName != med.Name {
			t.Errorf("position %d: medication name %q", i, items[i].MedicationName)
		}
	}
}

func TestDueListTriggersSweep(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	ctx := context.Background()

	rule, _ := schedule.NewSpecificTimes(med.ID, []schedule.TimeOfDay{{Hour: 12, Minute: 30}}, testNow.Add(-time.Hour))
	if err := f.schedules.Save(ctx, rule); err != nil {
		t.Fatal(err)
	}

	// No instances exist yet; the read itself must fill the horizon.
	svc := newService(f, testNow)
	items, err := svc.Due(ctx, "cg-1")
	if err != nil {
		t.Fatal(err)
	}

	if len(items) != 1 {
		t.Fatalf("due list has %d items, want 1", len(items))
	}
	if want := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC); !items[0].Instance.DueAt.Equal(want) {
		t.Errorf("due at %v, want %v", items[0].Instance.DueAt, want)
	}
}

func TestDueListEmptyForQuietCaregiver(t *testing.T) {
	f := newFixture()
	svc := newService(f, testNow)

	items, err := svc.Due(context.Background(), "cg-nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("due list has %d items for caregiver with no medications", len(items))
	}
}

func TestDueListExcludesResolved(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	ctx := context.Background()

	inst := f.addPendingInstance(t, med, testNow.Add(10*time.Minute))

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil).WithClock(clock(testNow))
	if _, err := lc.Resolve(ctx, inst.ID, true, "", "cg-1"); err != nil {
		t.Fatal(err)
	}

	svc := newService(f, testNow)
	items, err := svc.Due(ctx, "cg-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("resolved dose still on the due list")
	}
}
