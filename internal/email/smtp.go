package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/pkg/logger"
)

const displayLayout = "Monday, 02 Jan 2006 at 15:04 MST"

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ResetURL is the page the reset token is appended to as ?token=.
	ResetURL string
}

// dialer is satisfied by *gomail.Dialer.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPService delivers mail through an SMTP relay with gomail.
type SMTPService struct {
	dialer   dialer
	from     string
	resetURL string
	logger   *logger.Logger
}

func NewSMTPService(cfg Config, logger *logger.Logger) *SMTPService {
	return newSMTPService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, logger)
}

func newSMTPService(d dialer, cfg Config, logger *logger.Logger) *SMTPService {
	return &SMTPService{
		dialer:   d,
		from:     cfg.From,
		resetURL: cfg.ResetURL,
		logger:   logger,
	}
}

func (s *SMTPService) SendPasswordReset(ctx context.Context, email string, token string) error {
	link := token
	if s.resetURL != "" {
		link = s.resetURL + "?token=" + url.QueryEscape(token)
	}
	body := fmt.Sprintf(
		"We received a request to reset your password.\n\nUse the following link or token to choose a new one:\n\n%s\n\nIf you did not ask for this, ignore this message.\n",
		link,
	)
	return s.send(ctx, email, "Reset your password", body)
}

func (s *SMTPService) SendWelcome(ctx context.Context, email string, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour patient account is ready. You can now book appointments online.\n", name)
	return s.send(ctx, email, "Welcome to the clinic", body)
}

func (s *SMTPService) SendAppointmentConfirmation(ctx context.Context, n AppointmentNotice) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", n.PatientName)
	fmt.Fprintf(&b, "Your appointment with %s is confirmed.\n", n.DoctorName)
	fmt.Fprintf(&b, "When: %s\n", n.AppointmentTime.Format(displayLayout))
	if n.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", n.Reason)
	}
	fmt.Fprintf(&b, "\nReference: #%d\nCancellations are accepted up to 24 hours before the appointment.\n", n.AppointmentID)
	return s.send(ctx, n.PatientEmail, "Appointment confirmed", b.String())
}

func (s *SMTPService) SendAppointmentCancellation(ctx context.Context, n AppointmentNotice) error {
	body := fmt.Sprintf(
		"Hello %s,\n\nYour appointment #%d with %s has been cancelled.\nIt was planned for %s.\n",
		n.PatientName, n.AppointmentID, n.DoctorName, n.AppointmentTime.Format(displayLayout),
	)
	return s.send(ctx, n.PatientEmail, "Appointment cancelled", body)
}

func (s *SMTPService) send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("email %q: no recipient", subject)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %q to %s: %w", subject, to, err)
	}
	s.logger.WithContext(ctx).Debug("Email sent", "to", to, "subject", subject)
	return nil
}
