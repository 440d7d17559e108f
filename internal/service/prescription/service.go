package prescription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// CreatedPayload is the body of prescription.created.
type CreatedPayload struct {
	PrescriptionID uuid.UUID `json:"prescriptionId"`
	AppointmentID  int64     `json:"appointmentId"`
	PatientID      int64     `json:"patientId"`
	DoctorID       int64     `json:"doctorId"`
	Diagnosis      string    `json:"diagnosis"`
}

type Service struct {
	repo         repository.PrescriptionRepository
	appointments repository.AppointmentRepository
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(repo repository.PrescriptionRepository, appointments repository.AppointmentRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		logger:       logger,
		now:          time.Now,
	}
}

// Create writes the prescription of an appointment. Only the appointment's
// doctor may prescribe, and not for cancelled or missed appointments.
func (s *Service) Create(ctx context.Context, doctor model.Principal, req *model.CreatePrescriptionRequest) (*model.Prescription, error) {
	appt, err := s.appointments.Get(ctx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}

	if doctor.Role != model.RoleDoctor || !strings.EqualFold(appt.DoctorEmail, doctor.Email) {
		return nil, apperrors.Forbidden("only the appointment's doctor can prescribe")
	}
	switch appt.Status {
	case model.AppointmentStatusCancelled, model.AppointmentStatusNoShow:
		return nil, apperrors.BadRequest("cannot prescribe for a "+strings.ToLower(string(appt.Status))+" appointment", nil)
	}

	p := &model.Prescription{
		ID:               uuid.New(),
		AppointmentID:    appt.ID,
		PatientID:        appt.PatientID,
		PatientName:      appt.PatientName,
		DoctorID:         appt.DoctorID,
		DoctorName:       appt.DoctorName,
		Medications:      model.Medications(req.Medications),
		Diagnosis:        strings.TrimSpace(req.Diagnosis),
		Notes:            req.Notes,
		NextVisit:        req.NextVisit,
		PrescriptionDate: s.now(),
	}

	ev, err := event.New(model.EventPrescriptionCreated, CreatedPayload{
		PrescriptionID: p.ID,
		AppointmentID:  p.AppointmentID,
		PatientID:      p.PatientID,
		DoctorID:       p.DoctorID,
		Diagnosis:      p.Diagnosis,
	})
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.repo.Create(ctx, p, ev); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("appointment already has a prescription", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.logger.WithContext(ctx).Info("Prescription created", "prescription_id", p.ID, "appointment_id", p.AppointmentID)
	return p, nil
}

// Get returns the prescription to an admin or to the doctor or patient it names.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor model.Principal) (*model.Prescription, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("prescription", err)
		}
		return nil, apperrors.Internal(err)
	}
	if !canView(p, actor) {
		return nil, apperrors.Forbidden("not allowed to view this prescription")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, filters *model.PrescriptionFilters) ([]*model.Prescription, error) {
	list, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if list == nil {
		list = []*model.Prescription{}
	}
	return list, nil
}

func canView(p *model.Prescription, actor model.Principal) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleDoctor:
		return p.DoctorID == actor.UserID
	case model.RolePatient:
		return p.PatientID == actor.UserID
	}
	return false
}
