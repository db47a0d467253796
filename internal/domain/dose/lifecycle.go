package dose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/domain/medication"
)

// Lifecycle drives dose instances through pending -> given|skipped and
// records PRN doses that never had an instance.
type Lifecycle struct {
	instances InstanceRepository
	logs      LogRepository
	meds      medication.Repository
	logger    *zap.Logger
	now       func() time.Time
}

// NewLifecycle creates the lifecycle service
func NewLifecycle(instances InstanceRepository, logs LogRepository, meds medication.Repository, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		instances: instances,
		logs:      logs,
		meds:      meds,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}

// Resolve transitions a pending instance to given or skipped. The log
// entry is the durable record of what happened and is written first; the
// status flip is a projection. Skipping a dose requires a reason.
//
// Resolving a non-pending instance is rejected, which is what keeps a
// double-submit from producing two log rows.
func (l *Lifecycle) Resolve(ctx context.Context, instanceID string, wasGiven bool, reason, recordedBy string) (Instance, error) {
	reason = strings.TrimSpace(reason)
	if !wasGiven && reason == "" {
		return Instance{}, ErrReasonRequired
	}

	inst, err := l.instances.GetByID(ctx, instanceID)
	if err != nil {
		return Instance{}, err
	}
	if inst.Status != StatusPending {
		return Instance{}, ErrAlreadyResolved
	}

	status := StatusGiven
	if !wasGiven {
		status = StatusSkipped
	}

	entry := Log{
		ID:           uuid.NewString(),
		MedicationID: inst.MedicationID,
		InstanceID:   &inst.ID,
		AmountGiven:  inst.Amount,
		Unit:         inst.Unit,
		Given:        wasGiven,
		Reason:       reason,
		RecordedBy:   recordedBy,
		RecordedAt:   l.now(),
	}

	if err := l.instances.Resolve(ctx, inst.ID, entry, status); err != nil {
		if err == ErrInconsistent {
			// The audit record exists; only the projection is stale.
			l.logger.Error("dose resolution inconsistent",
				zap.String("instance_id", inst.ID),
				zap.String("log_id", entry.ID))
		}
		return Instance{}, err
	}

	inst.Status = status
	l.logger.Info("dose resolved",
		zap.String("instance_id", inst.ID),
		zap.String("medication_id", inst.MedicationID),
		zap.String("status", string(status)))
	return inst, nil
}

// RecordPRN appends a dose log for an as-needed medication. PRN doses
// have no backing instance and never touch the state machine. A reason
// is always required: when given it explains why the dose was needed,
// when not given why it was withheld.
func (l *Lifecycle) RecordPRN(ctx context.Context, medicationID string, amount float64, given bool, reason, recordedBy string) (Log, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Log{}, ErrReasonRequired
	}

	med, err := l.meds.GetByID(ctx, medicationID)
	if err != nil {
		return Log{}, err
	}
	if !med.PRN {
		return Log{}, fmt.Errorf("medication %s is not PRN", medicationID)
	}
	if amount <= 0 {
		amount = med.DoseAmount
	}

	entry := Log{
		ID:           uuid.NewString(),
		MedicationID: med.ID,
		InstanceID:   nil,
		AmountGiven:  amount,
		Unit:         med.DoseUnit,
		Given:        given,
		Reason:       reason,
		RecordedBy:   recordedBy,
		RecordedAt:   l.now(),
	}

	if err := l.logs.Append(ctx, entry); err != nil {
		return Log{}, err
	}

	l.logger.Info("prn dose recorded",
		zap.String("medication_id", med.ID),
		zap.Bool("given", given))
	return entry, nil
}

// History returns the medication's dose logs, newest first
func (l *Lifecycle) History(ctx context.Context, medicationID string, limit int) ([]Log, error) {
	if limit <= 0 {
		limit = 100
	}
	return l.logs.ListByMedication(ctx, medicationID, limit)
}
