package dose

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("dose instance not found")
	ErrAlreadyResolved = errors.New("dose instance already resolved")
	ErrReasonRequired  = errors.New("reason required")
	// ErrInconsistent marks a resolution where the log was written but the
	// status flip failed. The log is the durable record; the caller must
	// surface this instead of reporting success or failure outright.
	ErrInconsistent = errors.New("dose log written but instance status not updated")
)

// InstanceRepository provides dose instance persistence
type InstanceRepository interface {
	// InsertMany inserts pending instances, skipping any whose slot key
	// already exists. Returns the number actually inserted.
	InsertMany(ctx context.Context, instances []Instance) (int, error)
	GetByID(ctx context.Context, id string) (Instance, error)
	// HasPendingInWindow reports whether the medication has at least one
	// pending instance due in (from, to].
	HasPendingInWindow(ctx context.Context, medicationID string, from, to time.Time) (bool, error)
	// ListPendingDueBefore returns the caregiver's pending instances with
	// due time <= before, any due time in the past included.
	ListPendingDueBefore(ctx context.Context, caregiverID string, before time.Time) ([]Instance, error)
	// DeletePendingFuture removes the medication's pending instances due
	// at or after now. Resolved and past instances are never touched.
	DeletePendingFuture(ctx context.Context, medicationID string, now time.Time) (int64, error)
	// Resolve atomically appends the log and flips the pending instance
	// to status. Returns ErrAlreadyResolved when the instance is no
	// longer pending, ErrInconsistent when the log landed but the status
	// flip did not.
	Resolve(ctx context.Context, instanceID string, entry Log, status Status) error
}

// LogRepository provides dose log persistence. Append-only by contract.
type LogRepository interface {
	Append(ctx context.Context, entry Log) error
	ListByMedication(ctx context.Context, medicationID string, limit int) ([]Log, error)
}
