package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// ConflictWindow is how close two scheduled appointments of one doctor may be.
const ConflictWindow = 29 * time.Minute

// Booking outcomes recorded on the booking_attempts_total counter.
const (
	outcomeBooked   = "booked"
	outcomeConflict = "conflict"
	outcomeOffSlot  = "off_slot"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// SlotChecker tells whether a time is the start of one of a doctor's slots.
type SlotChecker interface {
	IsOnSlot(ctx context.Context, doctorID int64, t time.Time) (bool, error)
}

type BookRequest struct {
	DoctorID        int64
	PatientID       int64
	AppointmentTime time.Time
	Reason          string
	DurationMinutes int
}

type Service struct {
	repo     repository.AppointmentRepository
	doctors  repository.DoctorRepository
	patients repository.PatientRepository
	slots    SlotChecker
	loc      *time.Location
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
	slots SlotChecker,
	loc *time.Location,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	clock func() time.Time,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		slots:    slots,
		loc:      loc,
		logger:   logger,
		metrics:  metrics,
		now:      clock,
	}
}

// IsTimeAvailable reports whether no scheduled appointment of the doctor lies
// within the conflict window of t, bounds included.
func (s *Service) IsTimeAvailable(ctx context.Context, doctorID int64, t time.Time) (bool, error) {
	existing, err := s.repo.ListScheduledBetween(ctx, doctorID, t.Add(-ConflictWindow), t.Add(ConflictWindow))
	if err != nil {
		return false, apperrors.Internal(err)
	}
	return len(existing) == 0, nil
}

// Book creates a scheduled appointment. The conflict check is repeated by the
// repository inside the insert transaction, so concurrent requests for the
// same slot produce exactly one appointment.
func (s *Service) Book(ctx context.Context, req BookRequest) (*model.Appointment, error) {
	doctor, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		s.recordBooking(outcomeRejected)
		return nil, lookupError("doctor", err)
	}
	patient, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		s.recordBooking(outcomeRejected)
		return nil, lookupError("patient", err)
	}

	now := s.now()
	if !req.AppointmentTime.After(now) {
		s.recordBooking(outcomeRejected)
		return nil, apperrors.BadRequest("appointment time must be in the future", nil)
	}

	onSlot, err := s.slots.IsOnSlot(ctx, doctor.ID, req.AppointmentTime)
	if err != nil {
		s.recordBooking(outcomeError)
		return nil, apperrors.Internal(err)
	}
	if !onSlot {
		s.recordBooking(outcomeOffSlot)
		return nil, apperrors.SlotUnavailable("requested time is outside the doctor's availability", nil)
	}

	free, err := s.IsTimeAvailable(ctx, doctor.ID, req.AppointmentTime)
	if err != nil {
		s.recordBooking(outcomeError)
		return nil, err
	}
	if !free {
		s.recordBooking(outcomeConflict)
		return nil, apperrors.SlotUnavailable("time slot already booked", nil)
	}

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = model.DefaultDurationMinutes
	}

	appt := &model.Appointment{
		Base:            model.Base{CreatedAt: now, UpdatedAt: now},
		DoctorID:        doctor.ID,
		PatientID:       patient.ID,
		AppointmentTime: req.AppointmentTime,
		DurationMinutes: duration,
		Status:          model.AppointmentStatusScheduled,
		Reason:          strings.TrimSpace(req.Reason),
	}
	detail := &model.AppointmentDetail{
		DoctorName:   doctor.Name,
		PatientName:  patient.Name,
		PatientEmail: patient.Email,
	}

	if err := s.repo.CreateIfFree(ctx, appt, ConflictWindow, event.ForAppointment(model.EventAppointmentBooked, detail)); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			s.recordBooking(outcomeConflict)
			return nil, apperrors.SlotUnavailable("time slot already booked", err)
		}
		s.recordBooking(outcomeError)
		return nil, apperrors.Internal(err)
	}

	s.recordBooking(outcomeBooked)
	s.logger.WithContext(ctx).Info("Appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", appt.DoctorID,
		"patient_id", appt.PatientID,
		"appointment_time", appt.AppointmentTime,
	)
	return appt, nil
}

// Cancel moves a scheduled appointment to CANCELLED. Only an admin or one of
// the two parties may cancel, and only more than the cancellation notice ahead.
func (s *Service) Cancel(ctx context.Context, id int64, actorEmail string, actorRole model.Role) (*model.Appointment, error) {
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, lookupError("appointment", err)
	}

	if !isParty(detail, actorEmail, actorRole) {
		return nil, apperrors.Forbidden("not allowed to cancel this appointment")
	}

	now := s.now()
	if !detail.CanBeCancelled(now) {
		return nil, apperrors.NotCancellable("appointment cannot be cancelled less than 24 hours before it starts")
	}

	appt := detail.Appointment
	appt.Status = model.AppointmentStatusCancelled
	appt.UpdatedAt = now

	if err := s.repo.Transition(ctx, &appt, model.AppointmentStatusScheduled, event.ForAppointment(model.EventAppointmentCancelled, detail)); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, apperrors.NotCancellable("appointment is no longer scheduled")
		}
		return nil, apperrors.Internal(err)
	}

	s.recordTransition(appt.Status)
	s.logger.WithContext(ctx).Info("Appointment cancelled",
		"appointment_id", appt.ID,
		"actor", actorEmail,
		"actor_role", actorRole,
	)
	return &appt, nil
}

// Complete records the consultation notes and closes the appointment.
func (s *Service) Complete(ctx context.Context, id int64, notes string) (*model.Appointment, error) {
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, lookupError("appointment", err)
	}

	appt := detail.Appointment
	appt.Notes = notes
	return s.transition(ctx, detail, &appt, model.AppointmentStatusCompleted, model.EventAppointmentCompleted)
}

// UpdateStatus applies an administrative status change such as NO_SHOW.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status model.AppointmentStatus) (*model.Appointment, error) {
	if !status.Valid() {
		return nil, apperrors.BadRequest("unknown appointment status "+string(status), nil)
	}

	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, lookupError("appointment", err)
	}

	eventType := model.EventAppointmentStatus
	switch status {
	case model.AppointmentStatusCancelled:
		eventType = model.EventAppointmentCancelled
	case model.AppointmentStatusCompleted:
		eventType = model.EventAppointmentCompleted
	}

	appt := detail.Appointment
	return s.transition(ctx, detail, &appt, status, eventType)
}

func (s *Service) transition(ctx context.Context, detail *model.AppointmentDetail, appt *model.Appointment, to model.AppointmentStatus, eventType string) (*model.Appointment, error) {
	from := appt.Status
	if !from.CanTransition(to) {
		return nil, apperrors.InvalidTransition(string(from), string(to))
	}

	appt.Status = to
	appt.UpdatedAt = s.now()

	if err := s.repo.Transition(ctx, appt, from, event.ForAppointment(eventType, detail)); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, apperrors.InvalidTransition(string(from), string(to))
		}
		return nil, apperrors.Internal(err)
	}

	s.recordTransition(to)
	s.logger.WithContext(ctx).Info("Appointment status changed",
		"appointment_id", appt.ID,
		"from", from,
		"to", to,
	)
	return appt, nil
}

// Get returns the appointment if the actor is an admin or one of its parties.
func (s *Service) Get(ctx context.Context, id int64, actor model.Principal) (*model.AppointmentDetail, error) {
	detail, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, lookupError("appointment", err)
	}
	if !isParty(detail, actor.Email, actor.Role) {
		return nil, apperrors.Forbidden("not allowed to view this appointment")
	}
	return detail, nil
}

// ListByDoctor returns the doctor's appointments, restricted to one clinic day
// when date is given.
func (s *Service) ListByDoctor(ctx context.Context, doctorID int64, date *time.Time) ([]*model.AppointmentDetail, error) {
	filters := &model.AppointmentFilters{DoctorID: doctorID}
	if date != nil {
		filters.From, filters.To = model.DayBounds(*date, s.loc)
	}
	return s.list(ctx, filters)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*model.AppointmentDetail, error) {
	return s.list(ctx, &model.AppointmentFilters{PatientID: patientID})
}

// UpcomingForPatient lists the patient's scheduled appointments after now.
func (s *Service) UpcomingForPatient(ctx context.Context, patientID int64) ([]*model.AppointmentDetail, error) {
	return s.upcoming(ctx, &model.AppointmentFilters{PatientID: patientID})
}

// UpcomingForDoctor lists the doctor's scheduled appointments after now.
func (s *Service) UpcomingForDoctor(ctx context.Context, doctorID int64) ([]*model.AppointmentDetail, error) {
	return s.upcoming(ctx, &model.AppointmentFilters{DoctorID: doctorID})
}

func (s *Service) upcoming(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	filters.Status = model.AppointmentStatusScheduled
	filters.From = s.now().Add(time.Nanosecond)
	return s.list(ctx, filters)
}

func (s *Service) list(ctx context.Context, filters *model.AppointmentFilters) ([]*model.AppointmentDetail, error) {
	result, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if result == nil {
		result = []*model.AppointmentDetail{}
	}
	return result, nil
}

func (s *Service) recordBooking(outcome string) {
	s.metrics.BookingAttempts.WithLabelValues(outcome).Inc()
}

func (s *Service) recordTransition(status model.AppointmentStatus) {
	s.metrics.LifecycleTransitions.WithLabelValues(string(status)).Inc()
}

// isParty matches the actor against the appointment by role and email.
func isParty(detail *model.AppointmentDetail, email string, role model.Role) bool {
	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleDoctor:
		return email != "" && strings.EqualFold(detail.DoctorEmail, email)
	case model.RolePatient:
		return email != "" && strings.EqualFold(detail.PatientEmail, email)
	}
	return false
}

func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}
