package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// AppointmentPayload is the body of every appointment.* event.
type AppointmentPayload struct {
	AppointmentID   int64                   `json:"appointmentId"`
	DoctorID        int64                   `json:"doctorId"`
	DoctorName      string                  `json:"doctorName"`
	PatientID       int64                   `json:"patientId"`
	PatientName     string                  `json:"patientName"`
	PatientEmail    string                  `json:"patientEmail"`
	AppointmentTime time.Time               `json:"appointmentTime"`
	Status          model.AppointmentStatus `json:"status"`
	Reason          string                  `json:"reason,omitempty"`
}

// PatientPayload is the body of patient.registered.
type PatientPayload struct {
	PatientID int64  `json:"patientId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// New wraps payload into a pending outbox event.
func New(eventType string, payload interface{}) (*model.OutboxEvent, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ForAppointment builds the event from the appointment state at write time,
// so the id assigned by the insert is included.
func ForAppointment(eventType string, detail *model.AppointmentDetail) repository.EventBuilder {
	return func(a *model.Appointment) (*model.OutboxEvent, error) {
		payload := AppointmentPayload{
			AppointmentID:   a.ID,
			DoctorID:        a.DoctorID,
			PatientID:       a.PatientID,
			AppointmentTime: a.AppointmentTime,
			Status:          a.Status,
			Reason:          a.Reason,
		}
		if detail != nil {
			payload.DoctorName = detail.DoctorName
			payload.PatientName = detail.PatientName
			payload.PatientEmail = detail.PatientEmail
		}
		return New(eventType, payload)
	}
}

type EventService struct {
	outboxRepo repository.OutboxRepository
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{outboxRepo: outboxRepo}
}

// Emit records an event outside of any other write.
func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	event, err := New(eventType, payload)
	if err != nil {
		return err
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}
