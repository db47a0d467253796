// Package memory provides in-memory repository implementations used by
// tests and by the API in dev mode when no database is configured.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/medikid/go-doseflow/internal/domain/medication"
)

type medicationRepo struct {
	mu   sync.RWMutex
	byID map[string]medication.Medication
}

// NewMedicationRepo creates an in-memory medication repository
func NewMedicationRepo() medication.Repository {
	return &medicationRepo{byID: make(map[string]medication.Medication)}
}

func (r *medicationRepo) Create(ctx context.Context, m medication.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == "" {
		return errors.New("medication id required")
	}
	if _, exists := r.byID[m.ID]; exists {
		return errors.New("medication already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *medicationRepo) GetByID(ctx context.Context, id string) (medication.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	if !ok {
		return medication.Medication{}, medication.ErrNotFound
	}
	return m, nil
}

func (r *medicationRepo) Update(ctx context.Context, m medication.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID]; !ok {
		return medication.ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *medicationRepo) Stop(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byID[id]
	if !ok {
		return medication.ErrNotFound
	}
	m.Stop(at)
	r.byID[id] = m
	return nil
}

func (r *medicationRepo) ListActiveByCaregiver(ctx context.Context, caregiverID string) ([]medication.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medication.Medication, 0)
	for _, m := range r.byID {
		if m.CaregiverID == caregiverID && m.Active() {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *medicationRepo) ListByChild(ctx context.Context, childID string) ([]medication.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]medication.Medication, 0)
	for _, m := range r.byID {
		if m.ChildID == childID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
