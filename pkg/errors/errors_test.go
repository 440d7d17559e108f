package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"not found", NotFound("appointment", nil), http.StatusNotFound},
		{"bad request", BadRequest("bad date", nil), http.StatusBadRequest},
		{"invalid token", InvalidToken(nil), http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"slot unavailable", SlotUnavailable("taken", nil), http.StatusConflict},
		{"not cancellable", NotCancellable("too late"), http.StatusConflict},
		{"invalid transition", InvalidTransition("CANCELLED", "COMPLETED"), http.StatusConflict},
		{"internal", Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestIsCode_Wrapped(t *testing.T) {
	err := fmt.Errorf("booking: %w", SlotUnavailable("slot taken", nil))

	assert.True(t, IsCode(err, ErrSlotUnavailable))
	assert.False(t, IsCode(err, ErrNotFound))
	assert.False(t, IsCode(nil, ErrSlotUnavailable))
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
}

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NotFound("doctor", fmt.Errorf("sql: no rows in result set"))
	assert.Equal(t, "doctor not found: sql: no rows in result set", err.Error())
	assert.Equal(t, "slot taken", SlotUnavailable("slot taken", nil).Error())
}
