package email

import (
	"context"
	"sync"
)

// Sent is one message captured by a Recorder.
type Sent struct {
	Kind   string
	To     string
	Token  string
	Notice AppointmentNotice
}

// Recorder is a Service that keeps messages in memory for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	// Err, when set, is returned by every send.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SendPasswordReset(ctx context.Context, email string, token string) error {
	return r.add(Sent{Kind: "password_reset", To: email, Token: token})
}

func (r *Recorder) SendWelcome(ctx context.Context, email string, name string) error {
	return r.add(Sent{Kind: "welcome", To: email})
}

func (r *Recorder) SendAppointmentConfirmation(ctx context.Context, n AppointmentNotice) error {
	return r.add(Sent{Kind: "appointment_confirmation", To: n.PatientEmail, Notice: n})
}

func (r *Recorder) SendAppointmentCancellation(ctx context.Context, n AppointmentNotice) error {
	return r.add(Sent{Kind: "appointment_cancellation", To: n.PatientEmail, Notice: n})
}

// Sent returns a copy of everything sent so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) add(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, s)
	return nil
}
