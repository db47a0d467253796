package schedule

import "context"

// Repository provides rule persistence. A medication has at most one
// active rule; Save replaces any existing rule for the medication.
type Repository interface {
	Save(ctx context.Context, r Rule) error
	// GetActive returns the medication's active rule, or ErrNoActiveRule.
	GetActive(ctx context.Context, medicationID string) (Rule, error)
	DeleteByMedication(ctx context.Context, medicationID string) error
}
