package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const doctorColumns = `id, name, email, password_hash, specialty, phone, qualification,
	experience_years, consultation_fee, created_at, updated_at`

type doctorRepository struct {
	db *sqlx.DB
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	query := `
		INSERT INTO doctors (
			name, email, password_hash, specialty, phone, qualification,
			experience_years, consultation_fee, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	now := time.Now()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	err := r.db.QueryRowxContext(ctx, query,
		doctor.Name,
		doctor.Email,
		doctor.PasswordHash,
		doctor.Specialty,
		doctor.Phone,
		doctor.Qualification,
		doctor.ExperienceYears,
		doctor.ConsultationFee,
		doctor.CreatedAt,
		doctor.UpdatedAt,
	).Scan(&doctor.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("doctor %s: %w", doctor.Email, repository.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE id = $1`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, id); err != nil {
		return nil, notFound(err, "doctor")
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE lower(email) = lower($1)`
	var doctor model.Doctor
	if err := r.db.GetContext(ctx, &doctor, query, email); err != nil {
		return nil, notFound(err, "doctor")
	}
	return &doctor, nil
}

func (r *doctorRepository) List(ctx context.Context, specialty string) ([]*model.Doctor, error) {
	query := `
		SELECT ` + doctorColumns + `
		FROM doctors
		WHERE $1 = '' OR specialty ILIKE '%' || $1 || '%'
		ORDER BY name, id
	`
	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query, specialty); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (r *doctorRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE doctors SET password_hash = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update doctor password: %w", err)
	}
	return requireRow(result, "doctor")
}
