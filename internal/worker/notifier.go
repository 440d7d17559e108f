package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// ErrMalformedMessage marks messages the notifier cannot decode. They are
// logged and dropped.
var ErrMalformedMessage = errors.New("malformed message")

// NotifiedEvents are the event types the notifier mails about.
var NotifiedEvents = []string{
	model.EventAppointmentBooked,
	model.EventAppointmentCancelled,
	model.EventPatientRegistered,
}

// Subscriber is the receiving half of a messaging.Broker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Notifier turns published domain events into patient emails.
type Notifier struct {
	subscriber Subscriber
	emailSvc   email.Service
	prefix     string
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewNotifier(subscriber Subscriber, emailSvc email.Service, channelPrefix string, logger *logger.Logger, metrics *metrics.Metrics) *Notifier {
	return &Notifier{
		subscriber: subscriber,
		emailSvc:   emailSvc,
		prefix:     channelPrefix,
		logger:     logger,
		metrics:    metrics,
	}
}

// Start subscribes to every notified event and handles messages until ctx
// ends. It returns early only when a subscription cannot be made.
func (n *Notifier) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, eventType := range NotifiedEvents {
		channel := messaging.Channel(n.prefix, eventType)
		msgs, err := n.subscriber.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}

		wg.Add(1)
		go func(msgs <-chan []byte) {
			defer wg.Done()
			for raw := range msgs {
				if err := n.Handle(ctx, raw); err != nil {
					n.logger.Error(err, "Failed to handle notification", "channel", channel)
				}
			}
		}(msgs)
	}

	n.logger.Info("Starting notifier", "events", len(NotifiedEvents))
	<-ctx.Done()
	wg.Wait()
	n.logger.Info("Shutting down notifier")
	return nil
}

// Handle decodes one envelope and sends the matching email.
func (n *Notifier) Handle(ctx context.Context, raw []byte) error {
	var msg messaging.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		n.logger.Warn("Skipping undecodable message", "error", err.Error())
		return nil
	}

	err := n.dispatch(ctx, msg)
	switch {
	case errors.Is(err, ErrMalformedMessage):
		n.logger.Warn("Skipping malformed message", "event_id", msg.ID.String(), "event_type", msg.Type, "error", err.Error())
		n.count(msg.Type, "skipped")
		return nil
	case err != nil:
		n.count(msg.Type, "error")
		return fmt.Errorf("event %s: %w", msg.ID, err)
	}
	n.count(msg.Type, "sent")
	return nil
}

func (n *Notifier) dispatch(ctx context.Context, msg messaging.Message) error {
	switch msg.Type {
	case model.EventAppointmentBooked, model.EventAppointmentCancelled:
		var p event.AppointmentPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if p.PatientEmail == "" {
			return fmt.Errorf("%w: no patient email", ErrMalformedMessage)
		}
		notice := email.AppointmentNotice{
			AppointmentID:   p.AppointmentID,
			PatientName:     p.PatientName,
			PatientEmail:    p.PatientEmail,
			DoctorName:      p.DoctorName,
			AppointmentTime: p.AppointmentTime,
			Reason:          p.Reason,
		}
		if msg.Type == model.EventAppointmentBooked {
			return n.emailSvc.SendAppointmentConfirmation(ctx, notice)
		}
		return n.emailSvc.SendAppointmentCancellation(ctx, notice)

	case model.EventPatientRegistered:
		var p event.PatientPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		if p.Email == "" {
			return fmt.Errorf("%w: no email", ErrMalformedMessage)
		}
		return n.emailSvc.SendWelcome(ctx, p.Email, p.Name)
	}
	return fmt.Errorf("%w: unexpected type %q", ErrMalformedMessage, msg.Type)
}

func (n *Notifier) count(eventType, status string) {
	if n.metrics != nil {
		n.metrics.NotificationsSent.WithLabelValues(eventType, status).Inc()
	}
}
