package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medikid/go-doseflow/internal/domain/schedule"
	"github.com/medikid/go-doseflow/internal/infrastructure/redpanda"
)

// ScheduleRepo implements schedule.Repository on pgx. The unique
// constraint on medication_id enforces the one-active-rule invariant at
// the storage level.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo creates the repository
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

func (r *ScheduleRepo) Save(ctx context.Context, rule schedule.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	times, err := marshalTimes(rule.Times)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO schedule_rules (id, medication_id, kind, interval_hours, times, active_from)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (medication_id) DO UPDATE
		SET id = $1, kind = $3, interval_hours = $4, times = $5, active_from = $6, updated_at = NOW()
	`
	_, err = tx.Exec(ctx, query,
		rule.ID, rule.MedicationID, string(rule.Kind), intervalOrNil(rule), times, rule.ActiveFrom)
	if err != nil {
		return fmt.Errorf("save schedule rule: %w", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"medication_id": rule.MedicationID,
		"rule_id":       rule.ID,
		"kind":          rule.Kind,
		"active_from":   rule.ActiveFrom,
	})
	entry := &OutboxEntry{
		AggregateID:   rule.MedicationID,
		AggregateType: "schedule",
		EventType:     "ScheduleUpdated",
		Payload:       payload,
		KafkaTopic:    redpanda.TopicScheduleUpdated,
		KafkaKey:      rule.MedicationID,
	}
	if err := WriteEntry(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ScheduleRepo) GetActive(ctx context.Context, medicationID string) (schedule.Rule, error) {
	query := `
		SELECT id, medication_id, kind, interval_hours, times, active_from
		FROM schedule_rules
		WHERE medication_id = $1
	`

	var rule schedule.Rule
	var kind string
	var intervalHours *int
	var times []byte
	err := r.pool.QueryRow(ctx, query, medicationID).Scan(
		&rule.ID, &rule.MedicationID, &kind, &intervalHours, &times, &rule.ActiveFrom)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schedule.Rule{}, schedule.ErrNoActiveRule
		}
		return schedule.Rule{}, fmt.Errorf("get schedule rule: %w", err)
	}

	rule.Kind = schedule.Kind(kind)
	if intervalHours != nil {
		rule.IntervalHours = *intervalHours
	}
	if len(times) > 0 {
		rule.Times, err = unmarshalTimes(times)
		if err != nil {
			return schedule.Rule{}, err
		}
	}
	return rule, nil
}

func (r *ScheduleRepo) DeleteByMedication(ctx context.Context, medicationID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM schedule_rules WHERE medication_id = $1`, medicationID)
	if err != nil {
		return fmt.Errorf("delete schedule rule: %w", err)
	}
	return nil
}

func intervalOrNil(rule schedule.Rule) *int {
	if rule.Kind != schedule.KindEveryXHours {
		return nil
	}
	h := rule.IntervalHours
	return &h
}

func marshalTimes(times []schedule.TimeOfDay) ([]byte, error) {
	if len(times) == 0 {
		return nil, nil
	}
	strs := make([]string, 0, len(times))
	for _, t := range times {
		strs = append(strs, t.String())
	}
	b, err := json.Marshal(strs)
	if err != nil {
		return nil, fmt.Errorf("marshal times: %w", err)
	}
	return b, nil
}

func unmarshalTimes(raw []byte) ([]schedule.TimeOfDay, error) {
	var strs []string
	if err := json.Unmarshal(raw, &strs); err != nil {
		return nil, fmt.Errorf("unmarshal times: %w", err)
	}
	out := make([]schedule.TimeOfDay, 0, len(strs))
	for _, s := range strs {
		t, err := schedule.ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
