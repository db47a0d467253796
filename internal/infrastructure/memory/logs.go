package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/medikid/go-doseflow/internal/domain/dose"
)

type logRepo struct {
	mu   sync.Mutex
	byID map[string]dose.Log
}

// NewLogRepo creates an in-memory dose log repository. Append-only:
// there is no update or delete.
func NewLogRepo() dose.LogRepository {
	return &logRepo{byID: make(map[string]dose.Log)}
}

func (r *logRepo) Append(ctx context.Context, entry dose.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == "" {
		return errors.New("log id required")
	}
	if _, exists := r.byID[entry.ID]; exists {
		return errors.New("log already exists")
	}
	r.byID[entry.ID] = entry
	return nil
}

func (r *logRepo) ListByMedication(ctx context.Context, medicationID string, limit int) ([]dose.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}

	out := make([]dose.Log, 0)
	for _, l := range r.byID {
		if l.MedicationID == medicationID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
