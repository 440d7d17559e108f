package prescription

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	rxsvc "github.com/jwalitptl/clinic-api/internal/service/prescription"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

type testEnv struct {
	router  *gin.Engine
	tokens  *auth.TokenAuthority
	store   *memory.Store
	doctor  *model.Doctor
	other   *model.Doctor
	patient *model.Patient
	appt    *model.Appointment
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, validator.RegisterGin())
	ctx := context.Background()

	store := memory.NewStore()
	doctor := &model.Doctor{Name: "Dr. Ada", Email: "ada@clinic.test", Specialty: "Cardiology"}
	other := &model.Doctor{Name: "Dr. Bob", Email: "bob@clinic.test", Specialty: "Dermatology"}
	patient := &model.Patient{Name: "Jane Roe", Email: "jane@example.com"}
	require.NoError(t, store.Doctors().Create(ctx, doctor))
	require.NoError(t, store.Doctors().Create(ctx, other))
	require.NoError(t, store.Patients().Create(ctx, patient))

	appt := &model.Appointment{
		DoctorID:        doctor.ID,
		PatientID:       patient.ID,
		AppointmentTime: time.Now().Add(-time.Hour).UTC(),
		DurationMinutes: 30,
		Status:          model.AppointmentStatusCompleted,
	}
	store.Seed(appt)

	tokens, err := auth.NewTokenAuthority(auth.Config{Secret: "0123456789abcdef0123456789abcdef"}, nil)
	require.NoError(t, err)

	r := gin.New()
	NewHandler(rxsvc.NewService(store.Prescriptions(), store.Appointments(), logger.Nop())).
		RegisterRoutes(r.Group("/api/v1"), middleware.NewAuthMiddleware(tokens))
	return &testEnv{router: r, tokens: tokens, store: store, doctor: doctor, other: other, patient: patient, appt: appt}
}

func (e *testEnv) call(t *testing.T, method, path, emailAddr string, role model.Role, userID int64, body interface{}) (int, json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	tok, err := e.tokens.Issue(emailAddr, role, userID)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env.Data
}

func (e *testEnv) request() gin.H {
	return gin.H{
		"appointmentId": e.appt.ID,
		"diagnosis":     "Seasonal allergy",
		"medications": []gin.H{
			{"name": "Cetirizine", "dosage": "10mg", "frequency": "daily", "duration": "7 days"},
		},
	}
}

func TestCreate_OnlyAppointmentDoctor(t *testing.T) {
	e := setup(t)

	code, _ := e.call(t, http.MethodPost, "/api/v1/prescriptions", e.other.Email, model.RoleDoctor, e.other.ID, e.request())
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.call(t, http.MethodPost, "/api/v1/prescriptions", e.patient.Email, model.RolePatient, e.patient.ID, e.request())
	assert.Equal(t, http.StatusForbidden, code)

	code, data := e.call(t, http.MethodPost, "/api/v1/prescriptions", e.doctor.Email, model.RoleDoctor, e.doctor.ID, e.request())
	require.Equal(t, http.StatusCreated, code)
	var rx model.Prescription
	require.NoError(t, json.Unmarshal(data, &rx))
	assert.Equal(t, e.patient.ID, rx.PatientID)
	assert.Equal(t, "Dr. Ada", rx.DoctorName)

	code, _ = e.call(t, http.MethodGet, "/api/v1/prescriptions/"+rx.ID.String(), e.patient.Email, model.RolePatient, e.patient.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, data = e.call(t, http.MethodGet, "/api/v1/prescriptions", e.other.Email, model.RoleDoctor, e.other.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var list []model.Prescription
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Empty(t, list)
}

func TestCreate_BadInput(t *testing.T) {
	e := setup(t)

	code, _ := e.call(t, http.MethodPost, "/api/v1/prescriptions", e.doctor.Email, model.RoleDoctor, e.doctor.ID, gin.H{
		"appointmentId": e.appt.ID,
		"diagnosis":     "Seasonal allergy",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.call(t, http.MethodGet, "/api/v1/prescriptions/not-a-uuid", e.doctor.Email, model.RoleDoctor, e.doctor.ID, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
