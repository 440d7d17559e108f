package email

import (
	"context"
	"time"
)

// Service sends the transactional mails of the clinic.
type Service interface {
	SendPasswordReset(ctx context.Context, email string, token string) error
	SendWelcome(ctx context.Context, email string, name string) error
	SendAppointmentConfirmation(ctx context.Context, notice AppointmentNotice) error
	SendAppointmentCancellation(ctx context.Context, notice AppointmentNotice) error
}

// AppointmentNotice carries what a patient needs to know about an appointment.
type AppointmentNotice struct {
	AppointmentID   int64
	PatientName     string
	PatientEmail    string
	DoctorName      string
	AppointmentTime time.Time
	Reason          string
}
