package prescription

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/prescription"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	service *prescription.Service
}

func NewHandler(service *prescription.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	rx := r.Group("/prescriptions", auth.Authenticate(), middleware.PatientDataAccess("prescription"))
	{
		rx.POST("", auth.RequireRole(model.RoleDoctor), h.Create)
		rx.GET("", h.List)
		rx.GET("/:id", h.Get)
	}
}

func (h *Handler) Create(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreatePrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), p, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

func (h *Handler) Get(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid prescription id", err))
		return
	}

	rx, err := h.service.Get(c.Request.Context(), id, p)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, rx)
}

// List filters by ?patientId=, ?doctorId= and ?appointmentId=. Patients and
// doctors only ever see their own prescriptions.
func (h *Handler) List(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var filters model.PrescriptionFilters
	for name, dst := range map[string]*int64{
		"patientId":     &filters.PatientID,
		"doctorId":      &filters.DoctorID,
		"appointmentId": &filters.AppointmentID,
	} {
		if *dst, err = handler.QueryID(c, name); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
	}

	switch p.Role {
	case model.RolePatient:
		filters.PatientID = p.UserID
	case model.RoleDoctor:
		filters.DoctorID = p.UserID
	}

	list, err := h.service.List(c.Request.Context(), &filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, list)
}
