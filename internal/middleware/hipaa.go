package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PatientDataAccess marks responses carrying patient data as uncacheable and
// writes an access log line naming the caller and the resource.
func PatientDataAccess(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")

		c.Next()

		event := log.Info().
			Str("audit", "patient_data_access").
			Str("resource", resource).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("resource_id", c.Param("id")).
			Int("status", c.Writer.Status()).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("client_ip", c.ClientIP())
		if p, ok := GetPrincipal(c); ok {
			event = event.Str("actor_email", p.Email).Str("actor_role", string(p.Role))
		}
		event.Msg("Patient data accessed")
	}
}
