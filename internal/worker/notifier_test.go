package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/email"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/event"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func envelope(t *testing.T, eventType string, payload interface{}) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(messaging.Message{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    body,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	return raw
}

var bookedPayload = event.AppointmentPayload{
	AppointmentID:   42,
	DoctorName:      "Dr. Ada",
	PatientName:     "Jane",
	PatientEmail:    "jane@example.com",
	AppointmentTime: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	Status:          model.AppointmentStatusScheduled,
}

func TestNotifier_Handle(t *testing.T) {
	tests := []struct {
		name     string
		raw      func(t *testing.T) []byte
		wantKind string
	}{
		{
			name:     "booked",
			raw:      func(t *testing.T) []byte { return envelope(t, model.EventAppointmentBooked, bookedPayload) },
			wantKind: "appointment_confirmation",
		},
		{
			name:     "cancelled",
			raw:      func(t *testing.T) []byte { return envelope(t, model.EventAppointmentCancelled, bookedPayload) },
			wantKind: "appointment_cancellation",
		},
		{
			name: "registered",
			raw: func(t *testing.T) []byte {
				return envelope(t, model.EventPatientRegistered, event.PatientPayload{PatientID: 1, Name: "Jane", Email: "jane@example.com"})
			},
			wantKind: "welcome",
		},
		{
			name: "no patient email",
			raw: func(t *testing.T) []byte {
				p := bookedPayload
				p.PatientEmail = ""
				return envelope(t, model.EventAppointmentBooked, p)
			},
		},
		{
			name: "payload of the wrong shape",
			raw:  func(t *testing.T) []byte { return envelope(t, model.EventAppointmentBooked, []int{1, 2}) },
		},
		{
			name: "unknown type",
			raw:  func(t *testing.T) []byte { return envelope(t, "appointment.completed", bookedPayload) },
		},
		{
			name: "not json",
			raw:  func(t *testing.T) []byte { return []byte("{oops") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := email.NewRecorder()
			n := NewNotifier(nil, mail, "clinic", logger.Nop(), metrics.NewNop())

			require.NoError(t, n.Handle(context.Background(), tt.raw(t)))

			sent := mail.Sent()
			if tt.wantKind == "" {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, tt.wantKind, sent[0].Kind)
			assert.Equal(t, "jane@example.com", sent[0].To)
		})
	}
}

func TestNotifier_HandleReturnsSendErrors(t *testing.T) {
	mail := email.NewRecorder()
	mail.Err = assert.AnError
	n := NewNotifier(nil, mail, "clinic", logger.Nop(), metrics.NewNop())

	err := n.Handle(context.Background(), envelope(t, model.EventAppointmentBooked, bookedPayload))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNotifier_StartOverRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	broker := redis.NewRedisBrokerWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), nil, metrics.NewNop())
	t.Cleanup(func() { broker.Close() })

	mail := email.NewRecorder()
	n := NewNotifier(broker, mail, "clinic", logger.Nop(), metrics.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Start(ctx) }()

	channel := messaging.Channel("clinic", model.EventAppointmentBooked)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	var msg messaging.Message
	require.NoError(t, json.Unmarshal(envelope(t, model.EventAppointmentBooked, bookedPayload), &msg))
	require.NoError(t, broker.Publish(ctx, channel, msg))

	require.Eventually(t, func() bool { return len(mail.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(42), mail.Sent()[0].Notice.AppointmentID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("notifier did not stop")
	}
}
