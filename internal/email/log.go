package email

import (
	"context"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// LogService writes a line per message instead of sending it. It stands in
// for SMTP in local setups.
type LogService struct {
	logger *logger.Logger
}

func NewLogService(logger *logger.Logger) *LogService {
	return &LogService{logger: logger}
}

func (s *LogService) SendPasswordReset(ctx context.Context, email string, token string) error {
	s.logger.WithContext(ctx).Info("Password reset email skipped", "to", email)
	return nil
}

func (s *LogService) SendWelcome(ctx context.Context, email string, name string) error {
	s.logger.WithContext(ctx).Info("Welcome email skipped", "to", email)
	return nil
}

func (s *LogService) SendAppointmentConfirmation(ctx context.Context, n AppointmentNotice) error {
	s.logger.WithContext(ctx).Info("Appointment confirmation skipped", "to", n.PatientEmail, "appointment_id", n.AppointmentID)
	return nil
}

func (s *LogService) SendAppointmentCancellation(ctx context.Context, n AppointmentNotice) error {
	s.logger.WithContext(ctx).Info("Appointment cancellation skipped", "to", n.PatientEmail, "appointment_id", n.AppointmentID)
	return nil
}
