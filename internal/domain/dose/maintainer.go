package dose

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/domain/medication"
	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/pkg/debounce"
)

const (
	// LookaheadWindow is how far ahead coverage is checked before a
	// medication is considered in need of a top-up.
	LookaheadWindow = 48 * time.Hour
	// TopUpHorizon is how far ahead instances are generated when a gap
	// is found, and on schedule creation or edit.
	TopUpHorizon = 14 * 24 * time.Hour
	// SweepInterval is the per-caregiver debounce between sweeps. It is
	// a coarse rate limit, not a lock: overlapping sweeps are tolerated
	// because inserts deduplicate on the slot key.
	SweepInterval = 5 * time.Minute
)

// SweepRecorder receives counters from the sweep path
type SweepRecorder interface {
	SweepRun()
	SweepDebounced()
	InstancesInserted(count int)
}

type nopRecorder struct{}

func (nopRecorder) SweepRun()             {}
func (nopRecorder) SweepDebounced()       {}
func (nopRecorder) InstancesInserted(int) {}

// Maintainer keeps a rolling window of future instances populated for
// every active non-PRN medication a caregiver can see. It runs
// opportunistically on read; there is no background scheduler.
type Maintainer struct {
	meds      medication.Repository
	schedules schedule.Repository
	instances InstanceRepository
	limiter   *debounce.Limiter
	recorder  SweepRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewMaintainer creates the horizon maintainer
func NewMaintainer(meds medication.Repository, schedules schedule.Repository, instances InstanceRepository, limiter *debounce.Limiter, logger *zap.Logger) *Maintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limiter == nil {
		limiter = debounce.New(SweepInterval)
	}
	return &Maintainer{
		meds:      meds,
		schedules: schedules,
		instances: instances,
		limiter:   limiter,
		recorder:  nopRecorder{},
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests
func (m *Maintainer) WithClock(now func() time.Time) *Maintainer {
	m.now = now
	return m
}

// WithRecorder attaches sweep metrics
func (m *Maintainer) WithRecorder(r SweepRecorder) *Maintainer {
	if r != nil {
		m.recorder = r
	}
	return m
}

// EnsureCoverage tops up the instance horizon for the caregiver's active
// medications. A failure on one medication is logged and skipped so the
// rest of the sweep, and the caller's read, still go through.
func (m *Maintainer) EnsureCoverage(ctx context.Context, caregiverID string) {
	if !m.limiter.Allow(caregiverID) {
		m.recorder.SweepDebounced()
		return
	}
	m.recorder.SweepRun()

	now := m.now()
	meds, err := m.meds.ListActiveByCaregiver(ctx, caregiverID)
	if err != nil {
		m.logger.Error("horizon sweep: listing medications failed",
			zap.String("caregiver_id", caregiverID),
			zap.Error(err))
		return
	}

	for _, med := range meds {
		if med.PRN {
			continue
		}
		if err := m.topUp(ctx, med, now); err != nil {
			m.logger.Error("horizon sweep: top-up failed",
				zap.String("medication_id", med.ID),
				zap.Error(err))
		}
	}
}

func (m *Maintainer) topUp(ctx context.Context, med medication.Medication, now time.Time) error {
	covered, err := m.instances.HasPendingInWindow(ctx, med.ID, now, now.Add(LookaheadWindow))
	if err != nil {
		return err
	}
	if covered {
		return nil
	}

	rule, err := m.schedules.GetActive(ctx, med.ID)
	if err != nil {
		if err == schedule.ErrNoActiveRule {
			// Non-PRN medication without a rule generates nothing.
			return nil
		}
		return err
	}

	drafts := schedule.Generate(med, rule, now, now.Add(TopUpHorizon))
	if len(drafts) == 0 {
		return nil
	}

	inserted, err := m.instances.InsertMany(ctx, FromDrafts(drafts, now))
	if err != nil {
		return err
	}
	m.recorder.InstancesInserted(inserted)

	m.logger.Info("horizon topped up",
		zap.String("medication_id", med.ID),
		zap.Int("generated", len(drafts)),
		zap.Int("inserted", inserted))
	return nil
}
