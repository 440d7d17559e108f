package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS admins (
		id            BIGSERIAL PRIMARY KEY,
		username      VARCHAR(100) NOT NULL UNIQUE,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS doctors (
		id               BIGSERIAL PRIMARY KEY,
		name             VARCHAR(100) NOT NULL,
		email            VARCHAR(255) NOT NULL UNIQUE,
		password_hash    VARCHAR(255) NOT NULL,
		specialty        VARCHAR(100) NOT NULL,
		phone            VARCHAR(20) NOT NULL DEFAULT '',
		qualification    VARCHAR(255) NOT NULL DEFAULT '',
		experience_years INTEGER NOT NULL DEFAULT 0,
		consultation_fee NUMERIC(10,2) NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS patients (
		id            BIGSERIAL PRIMARY KEY,
		name          VARCHAR(100) NOT NULL,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		phone         VARCHAR(20) NOT NULL DEFAULT '',
		address       VARCHAR(255) NOT NULL DEFAULT '',
		date_of_birth DATE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS availability_rules (
		id          BIGSERIAL PRIMARY KEY,
		doctor_id   BIGINT NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
		day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		start_time  TIME NOT NULL,
		end_time    TIME NOT NULL,
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		CHECK (start_time < end_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_availability_rules_doctor ON availability_rules (doctor_id, day_of_week)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id               BIGSERIAL PRIMARY KEY,
		doctor_id        BIGINT NOT NULL REFERENCES doctors(id),
		patient_id       BIGINT NOT NULL REFERENCES patients(id),
		appointment_time TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 30,
		status           VARCHAR(20) NOT NULL
			CHECK (status IN ('SCHEDULED', 'COMPLETED', 'CANCELLED', 'NO_SHOW')),
		reason           VARCHAR(500) NOT NULL DEFAULT '',
		notes            TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_appointments_doctor_time_scheduled
		ON appointments (doctor_id, appointment_time) WHERE status = 'SCHEDULED'`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments (patient_id, appointment_time)`,
	`CREATE TABLE IF NOT EXISTS prescriptions (
		id                UUID PRIMARY KEY,
		appointment_id    BIGINT NOT NULL UNIQUE REFERENCES appointments(id),
		patient_id        BIGINT NOT NULL REFERENCES patients(id),
		patient_name      VARCHAR(100) NOT NULL,
		doctor_id         BIGINT NOT NULL REFERENCES doctors(id),
		doctor_name       VARCHAR(100) NOT NULL,
		medications       JSONB NOT NULL DEFAULT '[]',
		diagnosis         TEXT NOT NULL,
		notes             TEXT NOT NULL DEFAULT '',
		next_visit        TIMESTAMPTZ,
		prescription_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id            UUID PRIMARY KEY,
		event_type    VARCHAR(100) NOT NULL,
		payload       JSONB NOT NULL,
		status        VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		error_message TEXT,
		retry_count   INTEGER NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at  TIMESTAMPTZ,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events (created_at) WHERE status = 'PENDING'`,
}

// Migrate creates the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	base := NewBaseRepository(db)
	return base.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration step %d failed: %w", i+1, err)
			}
		}
		return nil
	})
}
