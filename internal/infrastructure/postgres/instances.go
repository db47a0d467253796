package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/domain/medication"
	"github.com/medikid/go-doseflow/internal/infrastructure/redpanda"
)

// InstanceRepo implements dose.InstanceRepository on pgx. The unique
// constraint on slot_key makes duplicate inserts from concurrent horizon
// sweeps a no-op instead of a duplicate row.
type InstanceRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewInstanceRepo creates the repository
func NewInstanceRepo(pool *pgxpool.Pool, logger *zap.Logger) *InstanceRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstanceRepo{pool: pool, logger: logger}
}

func (r *InstanceRepo) InsertMany(ctx context.Context, instances []dose.Instance) (int, error) {
	if len(instances) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO dose_instances
		(id, medication_id, schedule_id, child_id, caregiver_id, slot_key,
		 due_at, window_start, window_end, amount, unit, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (slot_key) DO NOTHING
	`

	inserted := 0
	for _, inst := range instances {
		tag, err := tx.Exec(ctx, query,
			inst.ID, inst.MedicationID, inst.ScheduleID, inst.ChildID, inst.CaregiverID,
			inst.SlotKey, inst.DueAt, inst.WindowStart, inst.WindowEnd,
			inst.Amount, string(inst.Unit), string(inst.Status), inst.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert instance: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if inserted > 0 {
		payload, _ := json.Marshal(map[string]any{
			"medication_id": instances[0].MedicationID,
			"generated":     inserted,
			"first_due_at":  instances[0].DueAt,
		})
		entry := &OutboxEntry{
			AggregateID:   instances[0].MedicationID,
			AggregateType: "Medication",
			EventType:     "DoseInstancesGenerated",
			Payload:       payload,
			KafkaTopic:    redpanda.TopicDoseGenerated,
			KafkaKey:      instances[0].MedicationID,
		}
		if err := WriteEntry(ctx, tx, entry); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

const instanceColumns = `
	id, medication_id, schedule_id, child_id, caregiver_id, slot_key,
	due_at, window_start, window_end, amount, unit, status, created_at
`

func (r *InstanceRepo) GetByID(ctx context.Context, id string) (dose.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM dose_instances WHERE id = $1`

	inst, err := scanInstance(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dose.Instance{}, dose.ErrNotFound
		}
		return dose.Instance{}, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

func (r *InstanceRepo) HasPendingInWindow(ctx context.Context, medicationID string, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM dose_instances
			WHERE medication_id = $1
			  AND status = 'pending'
			  AND due_at > $2
			  AND due_at <= $3
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, medicationID, from, to).Scan(&exists); err != nil {
		return false, fmt.Errorf("pending window check: %w", err)
	}
	return exists, nil
}

func (r *InstanceRepo) ListPendingDueBefore(ctx context.Context, caregiverID string, before time.Time) ([]dose.Instance, error) {
	query := `
		SELECT ` + instanceColumns + `
		FROM dose_instances
		WHERE caregiver_id = $1
		  AND status = 'pending'
		  AND due_at <= $2
		ORDER BY due_at ASC
	`
	rows, err := r.pool.Query(ctx, query, caregiverID, before)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []dose.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (r *InstanceRepo) DeletePendingFuture(ctx context.Context, medicationID string, now time.Time) (int64, error) {
	query := `
		DELETE FROM dose_instances
		WHERE medication_id = $1
		  AND status = 'pending'
		  AND due_at >= $2
	`
	tag, err := r.pool.Exec(ctx, query, medicationID, now)
	if err != nil {
		return 0, fmt.Errorf("delete pending future: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Resolve appends the dose log, flips the instance status and queues the
// reminder event in a single transaction. The conditional UPDATE on
// status = 'pending' is what rejects a second resolution.
func (r *InstanceRepo) Resolve(ctx context.Context, instanceID string, entry dose.Log, status dose.Status) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	logQuery := `
		INSERT INTO dose_logs
		(id, medication_id, instance_id, amount_given, unit, given, reason, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, logQuery,
		entry.ID, entry.MedicationID, entry.InstanceID, entry.AmountGiven,
		string(entry.Unit), entry.Given, entry.Reason, entry.RecordedBy, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert dose log: %w", err)
	}

	statusQuery := `
		UPDATE dose_instances
		SET status = $2
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := tx.Exec(ctx, statusQuery, instanceID, string(status))
	if err != nil {
		return fmt.Errorf("update instance status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Rolls the log back too; nothing was resolved.
		return dose.ErrAlreadyResolved
	}

	payload, _ := json.Marshal(map[string]any{
		"instance_id":   instanceID,
		"medication_id": entry.MedicationID,
		"given":         entry.Given,
		"recorded_at":   entry.RecordedAt,
	})
	outboxEntry := &OutboxEntry{
		AggregateID:   instanceID,
		AggregateType: "DoseInstance",
		EventType:     "DoseResolved",
		Payload:       payload,
		KafkaTopic:    redpanda.TopicDoseResolved,
		KafkaKey:      entry.MedicationID,
	}
	if err := WriteEntry(ctx, tx, outboxEntry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecoverStuckResolutions repairs instances that are still pending even
// though a dose log references them. With the transactional path above
// this should find nothing; it exists for data imported from deployments
// where the two writes were separate operations.
func (r *InstanceRepo) RecoverStuckResolutions(ctx context.Context) (int64, error) {
	query := `
		UPDATE dose_instances di
		SET status = CASE WHEN dl.given THEN 'given' ELSE 'skipped' END
		FROM dose_logs dl
		WHERE dl.instance_id = di.id
		  AND di.status = 'pending'
	`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("recover stuck resolutions: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.Warn("repaired stuck dose resolutions",
			zap.Int64("count", tag.RowsAffected()))
	}
	return tag.RowsAffected(), nil
}

func scanInstance(row pgx.Row) (dose.Instance, error) {
	var inst dose.Instance
	var unit, status string
	err := row.Scan(
		&inst.ID, &inst.MedicationID, &inst.ScheduleID, &inst.ChildID, &inst.CaregiverID,
		&inst.SlotKey, &inst.DueAt, &inst.WindowStart, &inst.WindowEnd,
		&inst.Amount, &unit, &status, &inst.CreatedAt,
	)
	if err != nil {
		return dose.Instance{}, err
	}
	inst.Unit = medication.Unit(unit)
	inst.Status = dose.Status(status)
	return inst, nil
}
