package slot

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

// 2026-10-19 is a Monday.
var (
	monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	now    = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func setup(t *testing.T) (*Service, *memory.Store, int64) {
	t.Helper()
	store := memory.NewStore()
	doc := &model.Doctor{Name: "Dr. Ada", Email: "ada@clinic.test", Specialty: "Cardiology", ConsultationFee: 80}
	require.NoError(t, store.Doctors().Create(context.Background(), doc))

	svc := NewService(store.Availability(), store.Appointments(), store.Doctors(),
		Config{RuleCacheTTL: time.Minute, Location: time.UTC},
		logger.Nop(), metrics.NewNop(), func() time.Time { return now })
	return svc, store, doc.ID
}

func mondayMorning(t *testing.T, svc *Service, doctorID int64) {
	t.Helper()
	_, err := svc.ReplaceRules(context.Background(), doctorID, []model.AvailabilityRuleInput{
		{DayOfWeek: intPtr(int(time.Monday)), StartTime: "09:00", EndTime: "10:00"},
	})
	require.NoError(t, err)
}

func TestAvailableSlots_ExcludesBooked(t *testing.T) {
	svc, store, doctorID := setup(t)
	mondayMorning(t, svc, doctorID)
	ctx := context.Background()

	assert.Equal(t, []string{"09:00", "09:30"}, svc.AvailableSlots(ctx, doctorID, monday, BandAny))

	store.Seed(&model.Appointment{
		DoctorID:        doctorID,
		PatientID:       99,
		AppointmentTime: monday.Add(9 * time.Hour),
		DurationMinutes: 30,
		Status:          model.AppointmentStatusScheduled,
	})
	assert.Equal(t, []string{"09:30"}, svc.AvailableSlots(ctx, doctorID, monday, BandAny))

	// Cancelled appointments free their slot again.
	store.Seed(&model.Appointment{
		DoctorID:        doctorID,
		PatientID:       98,
		AppointmentTime: monday.Add(9*time.Hour + 30*time.Minute),
		Status:          model.AppointmentStatusCancelled,
	})
	assert.Equal(t, []string{"09:30"}, svc.AvailableSlots(ctx, doctorID, monday, BandAny))
}

func TestAvailableSlots_NoRuleForWeekday(t *testing.T) {
	svc, _, doctorID := setup(t)
	mondayMorning(t, svc, doctorID)

	slots := svc.AvailableSlots(context.Background(), doctorID, monday.AddDate(0, 0, 1), BandAny)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestAvailableSlots_InactiveRuleIgnored(t *testing.T) {
	svc, _, doctorID := setup(t)
	_, err := svc.ReplaceRules(context.Background(), doctorID, []model.AvailabilityRuleInput{
		{DayOfWeek: intPtr(1), StartTime: "09:00", EndTime: "10:00", Active: boolPtr(false)},
		{DayOfWeek: intPtr(1), StartTime: "14:00", EndTime: "15:00"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"14:00", "14:30"}, svc.AvailableSlots(context.Background(), doctorID, monday, BandAny))
}

func TestAvailableSlots_PastSlotsExcluded(t *testing.T) {
	svc, _, doctorID := setup(t)
	mondayMorning(t, svc, doctorID)
	svc.now = func() time.Time { return monday.Add(9*time.Hour + 10*time.Minute) }

	assert.Equal(t, []string{"09:30"}, svc.AvailableSlots(context.Background(), doctorID, monday, BandAny))

	svc.now = func() time.Time { return monday.AddDate(0, 0, 1) }
	assert.Empty(t, svc.AvailableSlots(context.Background(), doctorID, monday, BandAny))
}

func TestAvailableSlots_Bands(t *testing.T) {
	svc, _, doctorID := setup(t)
	_, err := svc.ReplaceRules(context.Background(), doctorID, []model.AvailabilityRuleInput{
		{DayOfWeek: intPtr(1), StartTime: "11:30", EndTime: "12:30"},
		{DayOfWeek: intPtr(1), StartTime: "16:30", EndTime: "17:30"},
	})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, []string{"11:30"}, svc.AvailableSlots(ctx, doctorID, monday, BandMorning))
	assert.Equal(t, []string{"12:00", "16:30"}, svc.AvailableSlots(ctx, doctorID, monday, BandAfternoon))
	assert.Equal(t, []string{"17:00"}, svc.AvailableSlots(ctx, doctorID, monday, BandEvening))
	assert.Len(t, svc.AvailableSlots(ctx, doctorID, monday, ParseBand("whenever")), 4)
}

func TestAvailableSlots_Idempotent(t *testing.T) {
	svc, _, doctorID := setup(t)
	mondayMorning(t, svc, doctorID)
	ctx := context.Background()

	first := svc.AvailableSlots(ctx, doctorID, monday, BandAny)
	second := svc.AvailableSlots(ctx, doctorID, monday, BandAny)
	assert.Equal(t, first, second)
}

func TestRuleCache_InvalidatedOnReplace(t *testing.T) {
	svc, store, doctorID := setup(t)
	mondayMorning(t, svc, doctorID)
	ctx := context.Background()

	svc.AvailableSlots(ctx, doctorID, monday, BandAny)
	svc.AvailableSlots(ctx, doctorID, monday, BandAny)
	assert.Equal(t, 1, store.RuleReads)

	_, err := svc.ReplaceRules(ctx, doctorID, []model.AvailabilityRuleInput{
		{DayOfWeek: intPtr(1), StartTime: "13:00", EndTime: "13:30"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"13:00"}, svc.AvailableSlots(ctx, doctorID, monday, BandAny))
	assert.Equal(t, 2, store.RuleReads)
}

func TestReplaceRules_Validation(t *testing.T) {
	svc, _, doctorID := setup(t)
	ctx := context.Background()

	_, err := svc.ReplaceRules(ctx, doctorID, []model.AvailabilityRuleInput{
		{DayOfWeek: intPtr(1), StartTime: "10:00", EndTime: "09:00"},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrBadRequest))

	_, err = svc.ReplaceRules(ctx, 12345, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestIsOnSlot(t *testing.T) {
	svc, _, doctorID := setup(t)
	mondayMorning(t, svc, doctorID)
	ctx := context.Background()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"first slot", monday.Add(9 * time.Hour), true},
		{"second slot", monday.Add(9*time.Hour + 30*time.Minute), true},
		{"end is exclusive", monday.Add(10 * time.Hour), false},
		{"off grid", monday.Add(9*time.Hour + 15*time.Minute), false},
		{"other weekday", monday.AddDate(0, 0, 1).Add(9 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.IsOnSlot(ctx, doctorID, tt.at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestDoctorAvailability(t *testing.T) {
	svc, store, doctorID := setup(t)
	mondayMorning(t, svc, doctorID)
	ctx := context.Background()

	idle := &model.Doctor{Name: "Dr. Idle", Email: "idle@clinic.test", Specialty: "Cardiology"}
	require.NoError(t, store.Doctors().Create(ctx, idle))

	result, err := svc.DoctorAvailability(ctx, monday, "cardio", BandAny)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, doctorID, result[0].DoctorID)
	assert.Equal(t, "2026-10-19", result[0].Date)
	assert.Equal(t, []string{"09:00", "09:30"}, result[0].AvailableSlots)
	assert.Equal(t, 80.0, result[0].ConsultationFee)

	result, err = svc.DoctorAvailability(ctx, monday, "dermatology", BandAny)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestAvailableSlots_DSTTransitions(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ctx := context.Background()

	store := memory.NewStore()
	doc := &model.Doctor{Name: "Dr. Ada", Email: "ada@clinic.test", Specialty: "Cardiology"}
	require.NoError(t, store.Doctors().Create(ctx, doc))
	svc := NewService(store.Availability(), store.Appointments(), store.Doctors(),
		Config{RuleCacheTTL: time.Minute, Location: loc},
		logger.Nop(), metrics.NewNop(), func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, loc) })

	_, err = svc.ReplaceRules(ctx, doc.ID, []model.AvailabilityRuleInput{
		{DayOfWeek: intPtr(int(time.Sunday)), StartTime: "09:00", EndTime: "10:00"},
		{DayOfWeek: intPtr(int(time.Sunday)), StartTime: "23:00", EndTime: "23:30"},
	})
	require.NoError(t, err)

	days := map[string]time.Time{
		"spring forward": time.Date(2026, 3, 8, 0, 0, 0, 0, loc),
		"fall back":      time.Date(2026, 11, 1, 0, 0, 0, 0, loc),
	}
	for name, day := range days {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []string{"09:00", "09:30", "23:00"}, svc.AvailableSlots(ctx, doc.ID, day, BandAny))

			nine := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, loc)
			ok, err := svc.IsOnSlot(ctx, doc.ID, nine)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = svc.IsOnSlot(ctx, doc.ID, nine.Add(time.Hour))
			require.NoError(t, err)
			assert.False(t, ok)

			store.Seed(&model.Appointment{
				DoctorID:        doc.ID,
				PatientID:       99,
				AppointmentTime: time.Date(day.Year(), day.Month(), day.Day(), 23, 0, 0, 0, loc),
				DurationMinutes: 30,
				Status:          model.AppointmentStatusScheduled,
			})
			assert.Equal(t, []string{"09:00", "09:30"}, svc.AvailableSlots(ctx, doc.ID, day, BandAny))
		})
	}
}
