package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
)

func TestValidate_AvailabilityRule(t *testing.T) {
	v := New()
	day := 1

	ok := model.ReplaceAvailabilityRequest{Rules: []model.AvailabilityRuleInput{
		{DayOfWeek: &day, StartTime: "09:00", EndTime: "12:00"},
	}}
	assert.NoError(t, v.Validate(ok))

	bad := model.ReplaceAvailabilityRequest{Rules: []model.AvailabilityRuleInput{
		{DayOfWeek: &day, StartTime: "9 o'clock", EndTime: "12:00"},
	}}
	err := v.Validate(bad)
	require.Error(t, err)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "startTime", verrs[0].Field())
	assert.Equal(t, "clock", verrs[0].Tag())
}

func TestValidate_AppointmentStatus(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(model.UpdateAppointmentStatusRequest{Status: model.AppointmentStatusNoShow}))
	assert.Error(t, v.Validate(model.UpdateAppointmentStatusRequest{Status: "LOST"}))
}
