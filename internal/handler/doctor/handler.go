package doctor

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/slot"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Handler struct {
	doctors *doctor.Service
	slots   *slot.Service
}

func NewHandler(doctors *doctor.Service, slots *slot.Service) *Handler {
	return &Handler{doctors: doctors, slots: slots}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	doctors := r.Group("/doctors", auth.Authenticate())
	{
		doctors.GET("", h.List)
		doctors.POST("", auth.RequireRole(model.RoleAdmin), h.Create)
		doctors.GET("/availability", h.Availability)
		doctors.GET("/:id", h.Get)
		doctors.GET("/:id/slots", h.Slots)
		doctors.GET("/:id/rules", h.Rules)
		doctors.PUT("/:id/rules", auth.RequireRole(model.RoleDoctor, model.RoleAdmin), h.ReplaceRules)
	}
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.doctors.List(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	doc, err := h.doctors.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, doc)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	doc, err := h.doctors.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, doc)
}

// Slots lists the free slots of one doctor on ?date=YYYY-MM-DD, optionally
// narrowed by ?band=morning|afternoon|evening.
func (h *Handler) Slots(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	date, ok := h.requiredDate(c)
	if !ok {
		return
	}

	if _, err := h.doctors.Get(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	slots := h.slots.AvailableSlots(c.Request.Context(), id, date, slot.ParseBand(c.Query("band")))
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{
		"doctorId":       id,
		"date":           date.Format(model.DateLayout),
		"availableSlots": slots,
	})
}

// Availability lists every doctor with free slots on ?date=, optionally
// filtered by ?specialty= and ?band=.
func (h *Handler) Availability(c *gin.Context) {
	date, ok := h.requiredDate(c)
	if !ok {
		return
	}

	result, err := h.slots.DoctorAvailability(c.Request.Context(), date, c.Query("specialty"), slot.ParseBand(c.Query("band")))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, result)
}

func (h *Handler) Rules(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	rules, err := h.slots.Rules(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if rules == nil {
		rules = []*model.AvailabilityRule{}
	}
	httputil.RespondWithSuccess(c, http.StatusOK, rules)
}

// ReplaceRules swaps the weekly rules of a doctor. Doctors may only edit their own.
func (h *Handler) ReplaceRules(c *gin.Context) {
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
	if !handler.IsSelfOrAdmin(p, model.RoleDoctor, id) {
		httputil.RespondWithError(c, apperrors.Forbidden("not allowed to edit this doctor's availability"))
		return
	}

	var req model.ReplaceAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	rules, err := h.slots.ReplaceRules(c.Request.Context(), id, req.Rules)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, rules)
}

func (h *Handler) requiredDate(c *gin.Context) (time.Time, bool) {
	date, err := handler.QueryDate(c, "date", h.slots.Location())
	if err != nil {
		httputil.RespondWithError(c, err)
		return time.Time{}, false
	}
	if date == nil {
		httputil.RespondWithError(c, apperrors.BadRequest("date is required", nil))
		return time.Time{}, false
	}
	return *date, true
}
