package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type availabilityRepository struct {
	BaseRepository
}

func NewAvailabilityRepository(base BaseRepository) repository.AvailabilityRepository {
	return &availabilityRepository{base}
}

func (r *availabilityRepository) ListByDoctor(ctx context.Context, doctorID int64) ([]*model.AvailabilityRule, error) {
	query := `
		SELECT id, doctor_id, day_of_week, to_char(start_time, 'HH24:MI') AS start_time,
			   to_char(end_time, 'HH24:MI') AS end_time, active
		FROM availability_rules
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_time, id
	`
	var rules []*model.AvailabilityRule
	if err := r.db.SelectContext(ctx, &rules, query, doctorID); err != nil {
		return nil, fmt.Errorf("failed to list availability rules: %w", err)
	}
	return rules, nil
}

func (r *availabilityRepository) Replace(ctx context.Context, doctorID int64, rules []*model.AvailabilityRule) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE doctor_id = $1`, doctorID); err != nil {
			return fmt.Errorf("failed to clear availability rules: %w", err)
		}

		query := `
			INSERT INTO availability_rules (doctor_id, day_of_week, start_time, end_time, active)
			VALUES ($1, $2, $3::time, $4::time, $5)
			RETURNING id
		`
		for _, rule := range rules {
			rule.DoctorID = doctorID
			err := tx.QueryRowxContext(ctx, query,
				rule.DoctorID,
				int(rule.DayOfWeek),
				rule.StartTime,
				rule.EndTime,
				rule.Active,
			).Scan(&rule.ID)
			if err != nil {
				return fmt.Errorf("failed to insert availability rule: %w", err)
			}
		}
		return nil
	})
}
