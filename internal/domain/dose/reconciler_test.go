package dose_test

import (
	"context"
	"testing"
	"time"

	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/pkg/debounce"
)

func TestOnScheduleSavedReplacesCadence(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	ctx := context.Background()

	oldRule, _ := schedule.NewEveryXHours(med.ID, 8, testNow.Add(-time.Hour))
	if err := f.schedules.Save(ctx, oldRule); err != nil {
		t.Fatal(err)
	}

	m := dose.NewMaintainer(f.meds, f.schedules, f.instances, debounce.New(dose.SweepInterval).WithClock(clock(testNow)), nil).
		WithClock(clock(testNow))
	m.EnsureCoverage(ctx, "cg-1")

	// Switch to fixed clock times and reconcile.
	newRule, err := schedule.NewTimesPerDay(med.ID, []schedule.TimeOfDay{{Hour: 9, Minute: 0}, {Hour: 21, Minute: 0}}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.schedules.Save(ctx, newRule); err != nil {
		t.Fatal(err)
	}

	r := dose.NewReconciler(f.meds, f.schedules, f.instances, nil).WithClock(clock(testNow))
	if err := r.OnScheduleSaved(ctx, med.ID); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	pending, err := f.instances.ListPendingDueBefore(ctx, "cg-1", testNow.Add(dose.TopUpHorizon))
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) == 0 {
		t.Fatal("no instances after reconcile")
	}
	for _, inst := range pending {
		if inst.ScheduleID != newRule.ID {
			t.Errorf("instance due %v still belongs to the old rule", inst.DueAt)
		}
		hm := [2]int{inst.DueAt.Hour(), inst.DueAt.Minute()}
		if hm != [2]int{9, 0} && hm != [2]int{21, 0} {
			t.Errorf("instance due %v does not match the new cadence", inst.DueAt)
		}
	}
}

func TestOnScheduleSavedWithoutRuleJustClears(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	ctx := context.Background()

	rule, _ := schedule.NewEveryXHours(med.ID, 8, testNow.Add(-time.Hour))
	f.schedules.Save(ctx, rule)

	m := dose.NewMaintainer(f.meds, f.schedules, f.instances, debounce.New(dose.SweepInterval).WithClock(clock(testNow)), nil).
		WithClock(clock(testNow))
	m.EnsureCoverage(ctx, "cg-1")

	if err := f.schedules.DeleteByMedication(ctx, med.ID); err != nil {
		t.Fatal(err)
	}

	r := dose.NewReconciler(f.meds, f.schedules, f.instances, nil).WithClock(clock(testNow))
	if err := r.OnScheduleSaved(ctx, med.ID); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	pending, _ := f.instances.ListPendingDueBefore(ctx, "cg-1", testNow.Add(dose.TopUpHorizon))
	if len(pending) != 0 {
		t.Errorf("%d pending instances survive with no rule", len(pending))
	}
}

func TestOnMedicationStoppedPreservesHistory(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	ctx := context.Background()

	// One dose already given in the past, one pending in the future.
	past := f.addPendingInstance(t, med, testNow.Add(-2*time.Hour))
	future := f.addPendingInstance(t, med, testNow.Add(6*time.Hour))

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil).WithClock(clock(testNow))
	if _, err := lc.Resolve(ctx, past.ID, true, "", "cg-1"); err != nil {
		t.Fatal(err)
	}

	r := dose.NewReconciler(f.meds, f.schedules, f.instances, nil).WithClock(clock(testNow))
	if err := r.OnMedicationStopped(ctx, med.ID); err != nil {
		t.Fatalf("stop reconcile failed: %v", err)
	}

	if _, err := f.instances.GetByID(ctx, future.ID); err == nil {
		t.Error("future pending instance survived the stop")
	}

	kept, err := f.instances.GetByID(ctx, past.ID)
	if err != nil {
		t.Fatalf("resolved instance was deleted: %v", err)
	}
	if kept.Status != dose.StatusGiven {
		t.Errorf("resolved instance status = %s, want given", kept.Status)
	}

	logs, _ := f.logs.ListByMedication(ctx, med.ID, 10)
	if len(logs) != 1 {
		t.Errorf("dose log count = %d after stop, want 1", len(logs))
	}
}
