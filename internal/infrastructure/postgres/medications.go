// Package postgres provides PostgreSQL persistence for the scheduling
// engine plus the Transactional Outbox used for reminder events.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medikid/go-doseflow/internal/domain/medication"
)

// MedicationRepo implements medication.Repository on pgx
type MedicationRepo struct {
	pool *pgxpool.Pool
}

// NewMedicationRepo creates the repository
func NewMedicationRepo(pool *pgxpool.Pool) *MedicationRepo {
	return &MedicationRepo{pool: pool}
}

func (r *MedicationRepo) Create(ctx context.Context, m medication.Medication) error {
	query := `
		INSERT INTO medications
		(id, child_id, caregiver_id, name, dose_amount, dose_unit, route, prn, notes, started_at, stopped_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		m.ID, m.ChildID, m.CaregiverID, m.Name, m.DoseAmount, string(m.DoseUnit),
		string(m.Route), m.PRN, m.Notes, m.StartedAt, m.StoppedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

const medicationColumns = `
	id, child_id, caregiver_id, name, dose_amount, dose_unit, route, prn,
	notes, started_at, stopped_at, created_at, updated_at
`

func (r *MedicationRepo) GetByID(ctx context.Context, id string) (medication.Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE id = $1`

	m, err := scanMedication(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return medication.Medication{}, medication.ErrNotFound
		}
		return medication.Medication{}, fmt.Errorf("get medication: %w", err)
	}
	return m, nil
}

func (r *MedicationRepo) Update(ctx context.Context, m medication.Medication) error {
	query := `
		UPDATE medications
		SET name = $2, dose_amount = $3, dose_unit = $4, route = $5,
		    prn = $6, notes = $7, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		m.ID, m.Name, m.DoseAmount, string(m.DoseUnit), string(m.Route), m.PRN, m.Notes)
	if err != nil {
		return fmt.Errorf("update medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return medication.ErrNotFound
	}
	return nil
}

func (r *MedicationRepo) Stop(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE medications
		SET stopped_at = $2, updated_at = NOW()
		WHERE id = $1 AND stopped_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("stop medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or already stopped; distinguish for the caller.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medications WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("stop medication: %w", err)
		}
		if !exists {
			return medication.ErrNotFound
		}
	}
	return nil
}

func (r *MedicationRepo) ListActiveByCaregiver(ctx context.Context, caregiverID string) ([]medication.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE caregiver_id = $1 AND stopped_at IS NULL
		ORDER BY name ASC
	`
	return r.list(ctx, query, caregiverID)
}

func (r *MedicationRepo) ListByChild(ctx context.Context, childID string) ([]medication.Medication, error) {
	query := `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE child_id = $1
		ORDER BY name ASC
	`
	return r.list(ctx, query, childID)
}

func (r *MedicationRepo) list(ctx context.Context, query string, arg any) ([]medication.Medication, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	var out []medication.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMedication(row pgx.Row) (medication.Medication, error) {
	var m medication.Medication
	var unit, route string
	err := row.Scan(
		&m.ID, &m.ChildID, &m.CaregiverID, &m.Name, &m.DoseAmount, &unit,
		&route, &m.PRN, &m.Notes, &m.StartedAt, &m.StoppedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return medication.Medication{}, err
	}
	m.DoseUnit = medication.Unit(unit)
	m.Route = medication.Route(route)
	return m, nil
}
