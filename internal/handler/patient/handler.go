package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	patients := r.Group("/patients", auth.Authenticate(), middleware.PatientDataAccess("patient"))
	{
		patients.GET("/me", auth.RequireRole(model.RolePatient), h.Me)
		patients.GET("/:id", h.Get)
		patients.PUT("/:id", auth.RequireRole(model.RolePatient, model.RoleAdmin), h.Update)
	}
}

func (h *Handler) Me(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.respondWithPatient(c, p.UserID)
}

// Get returns a patient profile to the patient, to doctors and to admins.
func (h *Handler) Get(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if p.Role == model.RolePatient && p.UserID != id {
		httputil.RespondWithError(c, apperrors.Forbidden("not allowed to view this patient"))
		return
	}
	h.respondWithPatient(c, id)
}

func (h *Handler) Update(c *gin.Context) {
	p, err := handler.Principal(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !handler.IsSelfOrAdmin(p, model.RolePatient, id) {
		httputil.RespondWithError(c, apperrors.Forbidden("not allowed to edit this patient"))
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	updated, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}

func (h *Handler) respondWithPatient(c *gin.Context, id int64) {
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}
