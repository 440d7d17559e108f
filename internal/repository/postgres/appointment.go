package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const appointmentColumns = `a.id, a.doctor_id, a.patient_id, a.appointment_time, a.duration_minutes,
	a.status, a.reason, a.notes, a.created_at, a.updated_at`

const appointmentDetailQuery = `
	SELECT ` + appointmentColumns + `,
		   d.name AS doctor_name, d.specialty AS doctor_specialty, d.email AS doctor_email,
		   p.name AS patient_name, p.email AS patient_email
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN patients p ON p.id = a.patient_id
`

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func (r *appointmentRepository) CreateIfFree(ctx context.Context, appointment *model.Appointment, window time.Duration, event repository.EventBuilder) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Serialises bookings of one doctor until the transaction ends.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appointment.DoctorID); err != nil {
			return fmt.Errorf("failed to lock doctor schedule: %w", err)
		}

		var conflicts int
		err := tx.GetContext(ctx, &conflicts, `
			SELECT COUNT(*)
			FROM appointments
			WHERE doctor_id = $1
			AND status = $2
			AND appointment_time BETWEEN $3 AND $4
		`,
			appointment.DoctorID,
			model.AppointmentStatusScheduled,
			appointment.AppointmentTime.Add(-window),
			appointment.AppointmentTime.Add(window),
		)
		if err != nil {
			return fmt.Errorf("failed to check conflicts: %w", err)
		}
		if conflicts > 0 {
			return repository.ErrSlotTaken
		}

		query := `
			INSERT INTO appointments (
				doctor_id, patient_id, appointment_time, duration_minutes,
				status, reason, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`
		err = tx.QueryRowxContext(ctx, query,
			appointment.DoctorID,
			appointment.PatientID,
			appointment.AppointmentTime,
			appointment.DurationMinutes,
			appointment.Status,
			appointment.Reason,
			appointment.Notes,
			appointment.CreatedAt,
			appointment.UpdatedAt,
		).Scan(&appointment.ID)
		if isUniqueViolation(err) {
			return repository.ErrSlotTaken
		}
		if err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}

		return recordEvent(ctx, tx, appointment, event)
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	var appointment model.AppointmentDetail
	if err := r.db.GetContext(ctx, &appointment, appointmentDetailQuery+` WHERE a.id = $1`, id); err != nil {
		return nil, notFound(err, "appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) ListScheduledBetween(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments a
		WHERE a.doctor_id = $1
		AND a.status = $2
		AND a.appointment_time BETWEEN $3 AND $4
		ORDER BY a.appointment_time
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, doctorID, model.AppointmentStatusScheduled, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filters != nil {
		if filters.DoctorID != 0 {
			add("a.doctor_id = $%d", filters.DoctorID)
		}
		if filters.PatientID != 0 {
			add("a.patient_id = $%d", filters.PatientID)
		}
		if filters.Status != "" {
			add("a.status = $%d", filters.Status)
		}
		if !filters.From.IsZero() {
			add("a.appointment_time >= $%d", filters.From)
		}
		if !filters.To.IsZero() {
			add("a.appointment_time <= $%d", filters.To)
		}
	}

	query := appointmentDetailQuery
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.appointment_time, a.id"

	var appointments []*model.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Transition(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus, event repository.EventBuilder) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE appointments
			SET status = $1, notes = $2, updated_at = $3
			WHERE id = $4 AND status = $5
		`
		result, err := tx.ExecContext(ctx, query,
			appointment.Status,
			appointment.Notes,
			appointment.UpdatedAt,
			appointment.ID,
			from,
		)
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return repository.ErrStaleStatus
		}

		return recordEvent(ctx, tx, appointment, event)
	})
}

func recordEvent(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment, build repository.EventBuilder) error {
	if build == nil {
		return nil
	}
	event, err := build(appointment)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}
	if event == nil {
		return nil
	}
	return insertOutboxEvent(ctx, tx, event)
}
