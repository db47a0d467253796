package dose_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/domain/medication"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/internal/infrastructure/memory"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fixture struct {
	meds      medication.Repository
	schedules schedule.Repository
	instances dose.InstanceRepository
	logs      dose.LogRepository
}

func newFixture() *fixture {
	logs := memory.NewLogRepo()
	return &fixture{
		meds:      memory.NewMedicationRepo(),
		schedules: memory.NewScheduleRepo(),
		instances: memory.NewInstanceRepo(logs),
		logs:      logs,
	}
}

func (f *fixture) addMedication(t *testing.T, prn bool) medication.Medication {
	t.Helper()
	med, err := medication.New(medication.NewInput{
		ChildID:     "child-1",
		CaregiverID: "cg-1",
		Name:        "ibuprofen",
		DoseAmount:  5,
		DoseUnit:    medication.UnitMilliliter,
		Route:       medication.RouteOral,
		PRN:         prn,
	}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.meds.Create(context.Background(), med); err != nil {
		t.Fatal(err)
	}
	return med
}

func (f *fixture) addPendingInstance(t *testing.T, med medication.Medication, due time.Time) dose.Instance {
	t.Helper()
	rule, err := schedule.NewEveryXHours(med.ID, 8, due.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	draft := schedule.Draft{
		MedicationID: med.ID,
		ScheduleID:   rule.ID,
		ChildID:      med.ChildID,
		CaregiverID:  med.CaregiverID,
		DueAt:        due,
		WindowStart:  due.Add(-schedule.AcceptanceWindow),
		WindowEnd:    due.Add(schedule.AcceptanceWindow),
		Amount:       med.DoseAmount,
		Unit:         med.DoseUnit,
	}
	inst := dose.FromDraft(draft, testNow)
	if _, err := f.instances.InsertMany(context.Background(), []dose.Instance{inst}); err != nil {
		t.Fatal(err)
	}
	return inst
}

func TestResolveGiven(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	inst := f.addPendingInstance(t, med, testNow.Add(time.Hour))

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil).WithClock(clock(testNow))

	resolved, err := lc.Resolve(context.Background(), inst.ID, true, "", "cg-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != dose.StatusGiven {
		t.Errorf("status = %s, want given", resolved.Status)
	}

	logs, err := f.logs.ListByMedication(context.Background(), med.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("want exactly 1 log, got %d", len(logs))
	}
	l := logs[0]
	if !l.Given || l.AmountGiven != inst.Amount || l.Unit != inst.Unit {
		t.Errorf("log does not snapshot the instance: %+v", l)
	}
	if l.InstanceID == nil || *l.InstanceID != inst.ID {
		t.Error("log not linked to the instance")
	}
}

func TestResolveSkipRequiresReason(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	inst := f.addPendingInstance(t, med, testNow.Add(time.Hour))

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil).WithClock(clock(testNow))

	if _, err := lc.Resolve(context.Background(), inst.ID, false, "  ", "cg-1"); !errors.Is(err, dose.ErrReasonRequired) {
		t.Fatalf("want ErrReasonRequired, got %v", err)
	}

	// Rejected resolution must leave no log behind.
	logs, _ := f.logs.ListByMedication(context.Background(), med.ID, 10)
	if len(logs) != 0 {
		t.Errorf("rejected skip wrote %d logs", len(logs))
	}

	resolved, err := lc.Resolve(context.Background(), inst.ID, false, "spit it out", "cg-1")
	if err != nil {
		t.Fatalf("skip with reason failed: %v", err)
	}
	if resolved.Status != dose.StatusSkipped {
		t.Errorf("status = %s, want skipped", resolved.Status)
	}
}

func TestResolveTwiceRejected(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)
	inst := f.addPendingInstance(t, med, testNow.Add(time.Hour))

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil).WithClock(clock(testNow))

	if _, err := lc.Resolve(context.Background(), inst.ID, true, "", "cg-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := lc.Resolve(context.Background(), inst.ID, false, "changed my mind", "cg-1"); !errors.Is(err, dose.ErrAlreadyResolved) {
		t.Fatalf("want ErrAlreadyResolved, got %v", err)
	}

	logs, _ := f.logs.ListByMedication(context.Background(), med.ID, 10)
	if len(logs) != 1 {
		t.Errorf("double resolve produced %d logs, want 1", len(logs))
	}
}

func TestResolveUnknownInstance(t *testing.T) {
	f := newFixture()
	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil)

	if _, err := lc.Resolve(context.Background(), "no-such-id", true, "", "cg-1"); !errors.Is(err, dose.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecordPRN(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, true)

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil).WithClock(clock(testNow))

	entry, err := lc.RecordPRN(context.Background(), med.ID, 0, true, "fever 38.5", "cg-1")
	if err != nil {
		t.Fatalf("record PRN failed: %v", err)
	}
	if entry.InstanceID != nil {
		t.Error("PRN log should not reference an instance")
	}
	if entry.AmountGiven != med.DoseAmount {
		t.Errorf("amount defaulted to %v, want %v", entry.AmountGiven, med.DoseAmount)
	}

	if _, err := lc.RecordPRN(context.Background(), med.ID, 0, true, "", "cg-1"); !errors.Is(err, dose.ErrReasonRequired) {
		t.Errorf("PRN without reason: want ErrReasonRequired, got %v", err)
	}
}

func TestRecordPRNRejectsScheduledMedication(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, false)

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil)

	if _, err := lc.RecordPRN(context.Background(), med.ID, 0, true, "extra dose", "cg-1"); err == nil {
		t.Fatal("PRN record accepted for scheduled medication")
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture()
	med := f.addMedication(t, true)

	lc := dose.NewLifecycle(f.instances, f.logs, f.meds, nil)

	for i := 0; i < 3; i++ {
		at := testNow.Add(time.Duration(i) * time.Hour)
		lc.WithClock(clock(at))
		if _, err := lc.RecordPRN(context.Background(), med.ID, 0, true, "dose", "cg-1"); err != nil {
			t.Fatal(err)
		}
	}

	logs, err := lc.History(context.Background(), med.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("want 3 logs, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].RecordedAt.After(logs[i-1].RecordedAt) {
			t.Errorf("history not newest first at %d", i)
		}
	}
}
