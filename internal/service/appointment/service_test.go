package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/service/slot"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// 2026-10-19 is a Monday.
var (
	monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	now    = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc     *Service
	slots   *slot.Service
	store   *memory.Store
	doctor  *model.Doctor
	patient *model.Patient
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.NewStore(), clock: now}
	clock := func() time.Time { return f.clock }

	f.doctor = &model.Doctor{Name: "Dr. Ada", Email: "ada@clinic.test", Specialty: "Cardiology"}
	require.NoError(t, f.store.Doctors().Create(ctx, f.doctor))
	f.patient = &model.Patient{Name: "Jane Roe", Email: "jane@example.com"}
	require.NoError(t, f.store.Patients().Create(ctx, f.patient))

	f.slots = slot.NewService(f.store.Availability(), f.store.Appointments(), f.store.Doctors(),
		slot.Config{Location: time.UTC}, logger.Nop(), metrics.NewNop(), clock)
	weekday := int(time.Monday)
	_, err := f.slots.ReplaceRules(ctx, f.doctor.ID, []model.AvailabilityRuleInput{
		{DayOfWeek: &weekday, StartTime: "09:00", EndTime: "10:00"},
	})
	require.NoError(t, err)

	f.svc = NewService(f.store.Appointments(), f.store.Doctors(), f.store.Patients(), f.slots,
		time.UTC, logger.Nop(), metrics.NewNop(), clock)
	return f
}

func (f *fixture) addPatient(t *testing.T, email string) *model.Patient {
	t.Helper()
	p := &model.Patient{Name: email, Email: email}
	require.NoError(t, f.store.Patients().Create(context.Background(), p))
	return p
}

func (f *fixture) book(at time.Time, patientID int64) (*model.Appointment, error) {
	return f.svc.Book(context.Background(), BookRequest{
		DoctorID:        f.doctor.ID,
		PatientID:       patientID,
		AppointmentTime: at,
		Reason:          "checkup",
	})
}

func TestBook_SlotThenConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nine := monday.Add(9 * time.Hour)

	appt, err := f.book(nine, f.patient.ID)
	require.NoError(t, err)
	assert.NotZero(t, appt.ID)
	assert.Equal(t, model.AppointmentStatusScheduled, appt.Status)
	assert.Equal(t, model.DefaultDurationMinutes, appt.DurationMinutes)
	assert.Equal(t, now, appt.CreatedAt)

	_, err = f.book(nine, f.addPatient(t, "other@example.com").ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrSlotUnavailable))

	assert.Equal(t, []string{"09:30"}, f.slots.AvailableSlots(ctx, f.doctor.ID, monday, slot.BandAny))
	assert.Equal(t, []string{model.EventAppointmentBooked}, f.store.EventTypes())
}

func TestBook_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		doctorID int64
		patient  int64
		at       time.Time
		code     apperrors.ErrorCode
	}{
		{"unknown doctor", 999, f.patient.ID, monday.Add(9 * time.Hour), apperrors.ErrNotFound},
		{"unknown patient", f.doctor.ID, 999, monday.Add(9 * time.Hour), apperrors.ErrNotFound},
		{"past time", f.doctor.ID, f.patient.ID, now.Add(-time.Hour), apperrors.ErrBadRequest},
		{"now is not future", f.doctor.ID, f.patient.ID, now, apperrors.ErrBadRequest},
		{"outside rule", f.doctor.ID, f.patient.ID, monday.Add(11 * time.Hour), apperrors.ErrSlotUnavailable},
		{"off grid", f.doctor.ID, f.patient.ID, monday.Add(9*time.Hour + 10*time.Minute), apperrors.ErrSlotUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), BookRequest{
				DoctorID:        tt.doctorID,
				PatientID:       tt.patient,
				AppointmentTime: tt.at,
			})
			assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, f.store.EventTypes())
}

func TestIsTimeAvailable_WindowBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nine := monday.Add(9 * time.Hour)
	f.store.Seed(&model.Appointment{DoctorID: f.doctor.ID, PatientID: f.patient.ID, AppointmentTime: nine, Status: model.AppointmentStatusScheduled})

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"same time", nine, false},
		{"29 minutes later", nine.Add(29 * time.Minute), false},
		{"29 minutes earlier", nine.Add(-29 * time.Minute), false},
		{"30 minutes later", nine.Add(30 * time.Minute), true},
		{"30 minutes earlier", nine.Add(-30 * time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.svc.IsTimeAvailable(ctx, f.doctor.ID, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	at := monday.Add(9*time.Hour + 30*time.Minute)

	const n = 16
	patients := make([]int64, n)
	for i := range patients {
		patients[i] = f.addPatient(t, "p"+string(rune('a'+i))+"@example.com").ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(patientID int64) {
			defer wg.Done()
			_, err := f.book(at, patientID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperrors.IsCode(err, apperrors.ErrSlotUnavailable):
				conflicts++
			}
		}(patients[i])
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicts)
}

func TestCancel_NoticeAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soon := &model.Appointment{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		AppointmentTime: now.Add(10 * time.Hour),
		Status:          model.AppointmentStatusScheduled,
	}
	f.store.Seed(soon)
	stranger := f.addPatient(t, "stranger@example.com")

	_, err := f.svc.Cancel(ctx, soon.ID, f.patient.Email, model.RolePatient)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotCancellable))

	_, err = f.svc.Cancel(ctx, soon.ID, stranger.Email, model.RolePatient)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	// A patient cannot pass as the doctor by claiming the doctor role with their own email.
	_, err = f.svc.Cancel(ctx, soon.ID, f.patient.Email, model.RoleDoctor)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.Cancel(ctx, 999, f.patient.Email, model.RolePatient)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestCancel_FreesSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nine := monday.Add(9 * time.Hour)

	appt, err := f.book(nine, f.patient.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, appt.ID, f.doctor.Email, model.RoleDoctor)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, now, cancelled.UpdatedAt)

	_, err = f.svc.Cancel(ctx, appt.ID, "admin@clinic.test", model.RoleAdmin)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotCancellable))

	_, err = f.book(nine, f.addPatient(t, "next@example.com").ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		model.EventAppointmentBooked,
		model.EventAppointmentCancelled,
		model.EventAppointmentBooked,
	}, f.store.EventTypes())
}

func TestCancel_ExactlyAtNoticeBoundary(t *testing.T) {
	f := newFixture(t)
	appt := &model.Appointment{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		AppointmentTime: now.Add(model.CancellationNotice),
		Status:          model.AppointmentStatusScheduled,
	}
	f.store.Seed(appt)

	_, err := f.svc.Cancel(context.Background(), appt.ID, f.patient.Email, model.RolePatient)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotCancellable))
}

func TestComplete_OnlyFromScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.book(monday.Add(9*time.Hour), f.patient.ID)
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, appt.ID, "all good")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, done.Status)
	assert.Equal(t, "all good", done.Notes)

	_, err = f.svc.Complete(ctx, appt.ID, "again")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

	_, err = f.svc.Complete(ctx, 999, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestUpdateStatus_TransitionTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.book(monday.Add(9*time.Hour), f.patient.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, model.AppointmentStatusScheduled)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, appt.ID, "LOST")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	updated, err := f.svc.UpdateStatus(ctx, appt.ID, model.AppointmentStatusNoShow)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusNoShow, updated.Status)

	_, err = f.svc.UpdateStatus(ctx, appt.ID, model.AppointmentStatusNoShow)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))
	_, err = f.svc.UpdateStatus(ctx, appt.ID, model.AppointmentStatusCompleted)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrInvalidTransition))

	assert.Equal(t, []string{model.EventAppointmentBooked, model.EventAppointmentStatus}, f.store.EventTypes())
}

func TestGet_PartyAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.book(monday.Add(9*time.Hour), f.patient.ID)
	require.NoError(t, err)

	detail, err := f.svc.Get(ctx, appt.ID, model.Principal{Email: f.patient.Email, Role: model.RolePatient})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ada", detail.DoctorName)

	_, err = f.svc.Get(ctx, appt.ID, model.Principal{Email: "x@example.com", Role: model.RolePatient})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrForbidden))

	_, err = f.svc.Get(ctx, appt.ID, model.Principal{Email: "root@clinic.test", Role: model.RoleAdmin})
	assert.NoError(t, err)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.book(monday.Add(9*time.Hour), f.patient.ID)
	require.NoError(t, err)
	_, err = f.book(monday.Add(9*time.Hour+30*time.Minute), f.addPatient(t, "b@example.com").ID)
	require.NoError(t, err)
	f.store.Seed(&model.Appointment{
		DoctorID:        f.doctor.ID,
		PatientID:       f.patient.ID,
		AppointmentTime: now.Add(-48 * time.Hour),
		Status:          model.AppointmentStatusCompleted,
	})

	day := monday.Add(15 * time.Hour)
	onMonday, err := f.svc.ListByDoctor(ctx, f.doctor.ID, &day)
	require.NoError(t, err)
	assert.Len(t, onMonday, 2)

	all, err := f.svc.ListByDoctor(ctx, f.doctor.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := f.svc.ListByPatient(ctx, f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	upcoming, err := f.svc.UpcomingForPatient(ctx, f.patient.ID)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, first.ID, upcoming[0].ID)

	doctorUpcoming, err := f.svc.UpcomingForDoctor(ctx, f.doctor.ID)
	require.NoError(t, err)
	assert.Len(t, doctorUpcoming, 2)

	none, err := f.svc.ListByPatient(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
