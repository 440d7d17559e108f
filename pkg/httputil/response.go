package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one failed binding rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithMessage sends a success response carrying only a message
func RespondWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
	})
}

// RespondWithError maps err onto a status code and sends an error response.
// Internal errors are logged and their detail is hidden from the client.
func RespondWithError(c *gin.Context, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Internal(err)
	}

	status := appErr.HTTPStatus()
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, Response{
		Status:  "error",
		Message: message,
	})
}

// RespondWithBindError reports a request body or query that failed binding.
func RespondWithBindError(c *gin.Context, err error) {
	resp := Response{Status: "error", Message: "invalid request"}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		for _, e := range verrs {
			resp.Errors = append(resp.Errors, FieldError{
				Field:   e.Field(),
				Message: fieldMessage(e),
			})
		}
	} else {
		resp.Message = "invalid request: " + err.Error()
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "email":
		return "invalid email format"
	case "min", "gt":
		return "value is too small"
	case "max":
		return "value is too large"
	case "clock":
		return "expected HH:MM"
	case "appointment_status":
		return "unknown appointment status"
	case "role":
		return "unknown role"
	}
	return e.Error()
}
