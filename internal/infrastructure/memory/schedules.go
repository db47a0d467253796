package memory

import (
	"context"
	"sync"

	"github.com/medikid/go-doseflow/internal/domain/schedule"
)

type scheduleRepo struct {
	mu           sync.RWMutex
	byMedication map[string]schedule.Rule
}

// NewScheduleRepo creates an in-memory schedule repository. One rule per
// medication: saving replaces whatever was there.
func NewScheduleRepo() schedule.Repository {
	return &scheduleRepo{byMedication: make(map[string]schedule.Rule)}
}

func (r *scheduleRepo) Save(ctx context.Context, rule schedule.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMedication[rule.MedicationID] = rule
	return nil
}

func (r *scheduleRepo) GetActive(ctx context.Context, medicationID string) (schedule.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.byMedication[medicationID]
	if !ok {
		return schedule.Rule{}, schedule.ErrNoActiveRule
	}
	return rule, nil
}

func (r *scheduleRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byMedication, medicationID)
	return nil
}
