package doctor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	doctorsvc "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/slot"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type testEnv struct {
	router *gin.Engine
	tokens *auth.TokenAuthority
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.RegisterGin())

	store := memory.NewStore()
	slots := slot.NewService(store.Availability(), store.Appointments(), store.Doctors(),
		slot.Config{Location: time.UTC}, logger.Nop(), metrics.NewNop(), nil)
	doctors := doctorsvc.NewService(store.Doctors(), security.NewBcryptHasher(bcrypt.MinCost), logger.Nop())

	tokens, err := auth.NewTokenAuthority(auth.Config{Secret: "0123456789abcdef0123456789abcdef"}, nil)
	require.NoError(t, err)

	r := gin.New()
	NewHandler(doctors, slots).RegisterRoutes(r.Group("/api/v1"), middleware.NewAuthMiddleware(tokens))
	return &testEnv{router: r, tokens: tokens}
}

func (e *testEnv) call(t *testing.T, method, path string, role model.Role, userID int64, body interface{}) (int, json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := e.tokens.Issue(fmt.Sprintf("user%d@clinic.test", userID), role, userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env.Data
}

func nextMonday() time.Time {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func TestDoctorRulesAndSlots(t *testing.T) {
	e := setup(t)

	code, _ := e.call(t, http.MethodPost, "/api/v1/doctors", model.RolePatient, 1, gin.H{})
	assert.Equal(t, http.StatusForbidden, code)

	code, data := e.call(t, http.MethodPost, "/api/v1/doctors", model.RoleAdmin, 1, gin.H{
		"name":      "Dr. Ada",
		"email":     "ada@clinic.test",
		"password":  "doctor-pass",
		"specialty": "Cardiology",
	})
	require.Equal(t, http.StatusCreated, code)
	var doc model.Doctor
	require.NoError(t, json.Unmarshal(data, &doc))
	base := fmt.Sprintf("/api/v1/doctors/%d", doc.ID)

	rules := gin.H{"rules": []gin.H{
		{"dayOfWeek": 1, "startTime": "09:00", "endTime": "10:30"},
		{"dayOfWeek": 1, "startTime": "18:00", "endTime": "18:30"},
	}}

	// A different doctor cannot edit these rules.
	code, _ = e.call(t, http.MethodPut, base+"/rules", model.RoleDoctor, doc.ID+1, rules)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.call(t, http.MethodPut, base+"/rules", model.RoleDoctor, doc.ID, gin.H{"rules": []gin.H{
		{"dayOfWeek": 1, "startTime": "9am", "endTime": "10:00"},
	}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.call(t, http.MethodPut, base+"/rules", model.RoleDoctor, doc.ID, rules)
	require.Equal(t, http.StatusOK, code)

	code, data = e.call(t, http.MethodGet, base+"/rules", model.RolePatient, 7, nil)
	require.Equal(t, http.StatusOK, code)
	var stored []model.AvailabilityRule
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Len(t, stored, 2)

	date := nextMonday().Format(model.DateLayout)
	code, data = e.call(t, http.MethodGet, base+"/slots?date="+date, model.RolePatient, 7, nil)
	require.Equal(t, http.StatusOK, code)
	var slots struct {
		AvailableSlots []string `json:"availableSlots"`
	}
	require.NoError(t, json.Unmarshal(data, &slots))
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "18:00"}, slots.AvailableSlots)

	code, data = e.call(t, http.MethodGet, base+"/slots?band=evening&date="+date, model.RolePatient, 7, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(data, &slots))
	assert.Equal(t, []string{"18:00"}, slots.AvailableSlots)

	code, data = e.call(t, http.MethodGet, "/api/v1/doctors/availability?specialty=cardio&date="+date, model.RolePatient, 7, nil)
	require.Equal(t, http.StatusOK, code)
	var avail []model.DoctorAvailability
	require.NoError(t, json.Unmarshal(data, &avail))
	require.Len(t, avail, 1)
	assert.Equal(t, doc.ID, avail[0].DoctorID)
}

func TestSlots_BadInput(t *testing.T) {
	e := setup(t)

	code, _ := e.call(t, http.MethodGet, "/api/v1/doctors/1/slots", model.RolePatient, 7, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.call(t, http.MethodGet, "/api/v1/doctors/1/slots?date=2026/10/19", model.RolePatient, 7, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.call(t, http.MethodGet, "/api/v1/doctors/99/slots?date=2026-10-19", model.RolePatient, 7, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = e.call(t, http.MethodGet, "/api/v1/doctors/1/slots?date=2026-10-19", "", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
