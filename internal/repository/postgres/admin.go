package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

type adminRepository struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) repository.AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) Create(ctx context.Context, admin *model.Admin) error {
	query := `
		INSERT INTO admins (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	admin.CreatedAt = time.Now()
	err := r.db.QueryRowxContext(ctx, query, admin.Username, admin.Email, admin.PasswordHash, admin.CreatedAt).Scan(&admin.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("admin %s: %w", admin.Email, repository.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM admins
		WHERE lower(email) = lower($1)
	`
	var admin model.Admin
	if err := r.db.GetContext(ctx, &admin, query, email); err != nil {
		return nil, notFound(err, "admin")
	}
	return &admin, nil
}

func (r *adminRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE admins SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	return requireRow(result, "admin")
}
