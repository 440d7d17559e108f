package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrSlotTaken means another scheduled appointment of the doctor sits
	// inside the conflict window.
	ErrSlotTaken = errors.New("time slot already booked")
	// ErrStaleStatus means the appointment left the expected status before
	// the update landed.
	ErrStaleStatus = errors.New("appointment status changed concurrently")
)

// EventBuilder produces the outbox event recorded with a write, or nil for none.
type EventBuilder func(appointment *model.Appointment) (*model.OutboxEvent, error)

// All repository interfaces in one file
type (
	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id int64) (*model.Doctor, error)
		GetByEmail(ctx context.Context, email string) (*model.Doctor, error)
		// List returns doctors whose specialty contains specialty,
		// case-insensitively. An empty filter returns everyone.
		List(ctx context.Context, specialty string) ([]*model.Doctor, error)
		UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id int64) (*model.Patient, error)
		GetByEmail(ctx context.Context, email string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	}

	AdminRepository interface {
		Create(ctx context.Context, admin *model.Admin) error
		GetByEmail(ctx context.Context, email string) (*model.Admin, error)
		UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	}

	AvailabilityRepository interface {
		// ListByDoctor returns all rules of the doctor ordered by day and start time.
		ListByDoctor(ctx context.Context, doctorID int64) ([]*model.AvailabilityRule, error)
		// Replace swaps the doctor's whole rule set atomically.
		Replace(ctx context.Context, doctorID int64, rules []*model.AvailabilityRule) error
	}

	AppointmentRepository interface {
		// CreateIfFree inserts a SCHEDULED appointment unless another scheduled
		// appointment of the same doctor lies within window of its time, in
		// which case it returns ErrSlotTaken. The check and the insert are
		// serialised per doctor across processes.
		CreateIfFree(ctx context.Context, appointment *model.Appointment, window time.Duration, event EventBuilder) error
		Get(ctx context.Context, id int64) (*model.AppointmentDetail, error)
		// ListScheduledBetween returns the doctor's SCHEDULED appointments with
		// from <= time <= to, ordered by time.
		ListScheduledBetween(ctx context.Context, doctorID int64, from, to time.Time) ([]*model.Appointment, error)
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error)
		// Transition moves the appointment from one status to another and
		// returns ErrStaleStatus when it is no longer in from.
		Transition(ctx context.Context, appointment *model.Appointment, from model.AppointmentStatus, event EventBuilder) error
	}

	PrescriptionRepository interface {
		Create(ctx context.Context, prescription *model.Prescription, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		List(ctx context.Context, filters *model.PrescriptionFilters) ([]*model.Prescription, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
