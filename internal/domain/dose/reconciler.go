package dose

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/domain/medication"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
)

// Reconciler discards stale future expectations when a schedule changes
// or a medication stops. Past instances, resolved or not, are left alone:
// editing a schedule must never rewrite the historical record.
type Reconciler struct {
	meds      medication.Repository
	schedules schedule.Repository
	instances InstanceRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewReconciler creates the reschedule reconciler
func NewReconciler(meds medication.Repository, schedules schedule.Repository, instances InstanceRepository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		meds:      meds,
		schedules: schedules,
		instances: instances,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// OnScheduleSaved wipes pending future instances under the old cadence
// and regenerates against the newly saved rule over the full horizon.
func (r *Reconciler) OnScheduleSaved(ctx context.Context, medicationID string) error {
	now := r.now()

	deleted, err := r.instances.DeletePendingFuture(ctx, medicationID, now)
	if err != nil {
		return err
	}

	med, err := r.meds.GetByID(ctx, medicationID)
	if err != nil {
		return err
	}

	rule, err := r.schedules.GetActive(ctx, medicationID)
	if err != nil {
		if err == schedule.ErrNoActiveRule {
			return nil
		}
		return err
	}

	drafts := schedule.Generate(med, rule, now, now.Add(TopUpHorizon))
	inserted := 0
	if len(drafts) > 0 {
		inserted, err = r.instances.InsertMany(ctx, FromDrafts(drafts, now))
		if err != nil {
			return err
		}
	}

	r.logger.Info("schedule reconciled",
		zap.String("medication_id", medicationID),
		zap.Int64("deleted", deleted),
		zap.Int("inserted", inserted))
	return nil
}

// OnMedicationStopped wipes pending future instances and does not
// regenerate. Anything already due or resolved stays queryable for
// historical reporting.
func (r *Reconciler) OnMedicationStopped(ctx context.Context, medicationID string) error {
	deleted, err := r.instances.DeletePendingFuture(ctx, medicationID, r.now())
	if err != nil {
		return err
	}

	r.logger.Info("medication stopped, future instances cleared",
		zap.String("medication_id", medicationID),
		zap.Int64("deleted", deleted))
	return nil
}
