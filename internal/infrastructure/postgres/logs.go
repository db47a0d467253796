package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medikid/go-doseflow/internal/domain/dose"
	"github.com/medikid/go-doseflow/internal/domain/medication"
)

// LogRepo implements dose.LogRepository on pgx. There is deliberately no
// update or delete: dose logs are the audit trail.
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo creates the repository
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

func (r *LogRepo) Append(ctx context.Context, entry dose.Log) error {
	query := `
		INSERT INTO dose_logs
		(id, medication_id, instance_id, amount_given, unit, given, reason, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.MedicationID, entry.InstanceID, entry.AmountGiven,
		string(entry.Unit), entry.Given, entry.Reason, entry.RecordedBy, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("append dose log: %w", err)
	}
	return nil
}

func (r *LogRepo) ListByMedication(ctx context.Context, medicationID string, limit int) ([]dose.Log, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, medication_id, instance_id, amount_given, unit, given, reason, recorded_by, recorded_at
		FROM dose_logs
		WHERE medication_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, medicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list dose logs: %w", err)
	}
	defer rows.Close()

	var out []dose.Log
	for rows.Next() {
		var l dose.Log
		var unit string
		err := rows.Scan(
			&l.ID, &l.MedicationID, &l.InstanceID, &l.AmountGiven,
			&unit, &l.Given, &l.Reason, &l.RecordedBy, &l.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("scan dose log: %w", err)
		}
		l.Unit = medication.Unit(unit)
		out = append(out, l)
	}
	return out, rows.Err()
}
