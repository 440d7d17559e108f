package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const prescriptionColumns = `id, appointment_id, patient_id, patient_name, doctor_id, doctor_name,
	medications, diagnosis, notes, next_visit, prescription_date`

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(base BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{base}
}

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription, event *model.OutboxEvent) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO prescriptions (` + prescriptionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := tx.ExecContext(ctx, query,
			p.ID,
			p.AppointmentID,
			p.PatientID,
			p.PatientName,
			p.DoctorID,
			p.DoctorName,
			p.Medications,
			p.Diagnosis,
			p.Notes,
			p.NextVisit,
			p.PrescriptionDate,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("prescription for appointment %d: %w", p.AppointmentID, repository.ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("failed to create prescription: %w", err)
		}

		if event == nil {
			return nil
		}
		return insertOutboxEvent(ctx, tx, event)
	})
}

func (r *prescriptionRepository) Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1`
	var p model.Prescription
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		return nil, notFound(err, "prescription")
	}
	return &p, nil
}

func (r *prescriptionRepository) List(ctx context.Context, filters *model.PrescriptionFilters) ([]*model.Prescription, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filters != nil {
		if filters.PatientID != 0 {
			args = append(args, filters.PatientID)
			conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
		}
		if filters.DoctorID != 0 {
			args = append(args, filters.DoctorID)
			conds = append(conds, fmt.Sprintf("doctor_id = $%d", len(args)))
		}
		if filters.AppointmentID != 0 {
			args = append(args, filters.AppointmentID)
			conds = append(conds, fmt.Sprintf("appointment_id = $%d", len(args)))
		}
	}

	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY prescription_date DESC, id"

	var prescriptions []*model.Prescription
	if err := r.db.SelectContext(ctx, &prescriptions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	return prescriptions, nil
}
