package medication

import (
	"context"
	"time"
)

// Repository provides medication persistence
type Repository interface {
	Create(ctx context.Context, m Medication) error
	GetByID(ctx context.Context, id string) (Medication, error)
	Update(ctx context.Context, m Medication) error
	// Stop marks the medication stopped; it is a no-op if already stopped.
	Stop(ctx context.Context, id string, at time.Time) error
	// ListActiveByCaregiver returns all non-stopped medications across the
	// caregiver's children.
	ListActiveByCaregiver(ctx context.Context, caregiverID string) ([]Medication, error)
	ListByChild(ctx context.Context, childID string) ([]Medication, error)
}
