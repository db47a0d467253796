package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medikid/go-doseflow/internal/domain/dose"
)

type instanceRepo struct {
	mu     sync.Mutex
	byID   map[string]dose.Instance
	bySlot map[string]string // slot key -> instance id
	logs   dose.LogRepository
}

// NewInstanceRepo creates an in-memory dose instance repository. It
// holds the log repository so Resolve appends the log before flipping
// the status, mirroring the transactional Postgres path.
func NewInstanceRepo(logs dose.LogRepository) dose.InstanceRepository {
	return &instanceRepo{
		byID:   make(map[string]dose.Instance),
		bySlot: make(map[string]string),
		logs:   logs,
	}
}

func (r *instanceRepo) InsertMany(ctx context.Context, instances []dose.Instance) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inserted := 0
	for _, inst := range instances {
		if _, taken := r.bySlot[inst.SlotKey]; taken {
			continue
		}
		r.byID[inst.ID] = inst
		r.bySlot[inst.SlotKey] = inst.ID
		inserted++
	}
	return inserted, nil
}

func (r *instanceRepo) GetByID(ctx context.Context, id string) (dose.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.byID[id]
	if !ok {
		return dose.Instance{}, dose.ErrNotFound
	}
	return inst, nil
}

func (r *instanceRepo) HasPendingInWindow(ctx context.Context, medicationID string, from, to time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, inst := range r.byID {
		if inst.MedicationID != medicationID || inst.Status != dose.StatusPending {
			continue
		}
		if inst.DueAt.After(from) && !inst.DueAt.After(to) {
			return true, nil
		}
	}
	return false, nil
}

func (r *instanceRepo) ListPendingDueBefore(ctx context.Context, caregiverID string, before time.Time) ([]dose.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]dose.Instance, 0)
	for _, inst := range r.byID {
		if inst.CaregiverID != caregiverID || inst.Status != dose.StatusPending {
			continue
		}
		if inst.DueAt.After(before) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (r *instanceRepo) DeletePendingFuture(ctx context.Context, medicationID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, inst := range r.byID {
		if inst.MedicationID != medicationID || inst.Status != dose.StatusPending {
			continue
		}
		if inst.DueAt.Before(now) {
			continue
		}
		delete(r.byID, id)
		delete(r.bySlot, inst.SlotKey)
		deleted++
	}
	return deleted, nil
}

func (r *instanceRepo) Resolve(ctx context.Context, instanceID string, entry dose.Log, status dose.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, ok := r.byID[instanceID]
	if !ok {
		return dose.ErrNotFound
	}
	if inst.Status != dose.StatusPending {
		return dose.ErrAlreadyResolved
	}

	if r.logs != nil {
		if err := r.logs.Append(ctx, entry); err != nil {
			return err
		}
	}

	inst.Status = status
	r.byID[instanceID] = inst
	return nil
}
