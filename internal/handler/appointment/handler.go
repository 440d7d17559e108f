package appointment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
	loc     *time.Location
}

func NewHandler(service *appointment.Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{service: service, loc: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	appts := r.Group("/appointments", auth.Authenticate(), middleware.PatientDataAccess("appointment"))
	{
		appts.POST("", auth.RequireRole(model.RolePatient, model.RoleAdmin), h.Book)
		appts.GET("/upcoming", auth.RequireRole(model.RolePatient, model.RoleDoctor), h.Upcoming)
		appts.GET("/doctor/:id", auth.RequireRole(model.RoleDoctor, model.RoleAdmin), h.ListByDoctor)
		appts.GET("/patient/:id", h.ListByPatient)
		appts.GET("/:id", h.Get)
		appts.DELETE("/:id", h.Cancel)
		appts.PUT("/:id/complete", auth.RequireRole(model.RoleDoctor, model.RoleAdmin), h.Complete)
		appts.PATCH("/:id/status", auth.RequireRole(model.RoleDoctor, model.RoleAdmin), h.UpdateStatus)
	}
}

// Book creates an appointment. Patients always book for themselves; admins
// name the patient in the body.
func (h *Handler) Book(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	patientID := req.PatientID
	if p.Role == model.RolePatient {
		patientID = p.UserID
	} else if patientID == 0 {
		httputil.RespondWithError(c, apperrors.BadRequest("patientId is required", nil))
		return
	}

	appt, err := h.service.Book(c.Request.Context(), appointment.BookRequest{
		DoctorID:        req.DoctorID,
		PatientID:       patientID,
		AppointmentTime: req.AppointmentTime,
		Reason:          req.Reason,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, appt)
}

func (h *Handler) Get(c *gin.Context) {
	p, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	appt, err := h.service.Get(c.Request.Context(), id, p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appt)
}

func (h *Handler) ListByDoctor(c *gin.Context) {
	p, doctorID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	if !handler.IsSelfOrAdmin(p, model.RoleDoctor, doctorID) {
		httputil.RespondWithError(c, apperrors.Forbidden("not allowed to list this doctor's appointments"))
		return
	}

	date, err := handler.QueryDate(c, "date", h.loc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	list, err := h.service.ListByDoctor(c.Request.Context(), doctorID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

func (h *Handler) ListByPatient(c *gin.Context) {
	p, patientID, ok := h.principalAndID(c)
	if !ok {
		return
	}
	if p.Role == model.RolePatient && p.UserID != patientID {
		httputil.RespondWithError(c, apperrors.Forbidden("not allowed to list this patient's appointments"))
		return
	}

	list, err := h.service.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

// Upcoming lists the caller's own scheduled appointments.
func (h *Handler) Upcoming(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var list []*model.AppointmentDetail
	if p.Role == model.RoleDoctor {
		list, err = h.service.UpcomingForDoctor(c.Request.Context(), p.UserID)
	} else {
		list, err = h.service.UpcomingForPatient(c.Request.Context(), p.UserID)
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

func (h *Handler) Cancel(c *gin.Context) {
	p, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	appt, err := h.service.Cancel(c.Request.Context(), id, p.Email, p.Role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appt)
}

func (h *Handler) Complete(c *gin.Context) {
	p, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req model.CompleteAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	// Doctors may only close their own appointments.
	if _, err := h.service.Get(c.Request.Context(), id, p); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appt, err := h.service.Complete(c.Request.Context(), id, req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appt)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	p, id, ok := h.principalAndID(c)
	if !ok {
		return
	}

	var req model.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	if _, err := h.service.Get(c.Request.Context(), id, p); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	appt, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, appt)
}

func (h *Handler) principalAndID(c *gin.Context) (model.Principal, int64, bool) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return model.Principal{}, 0, false
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return model.Principal{}, 0, false
	}
	return p, id, true
}
