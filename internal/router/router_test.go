package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	doctorsvc "github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/slot"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(t *testing.T, dbErr error, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := auth.NewTokenAuthority(auth.Config{Secret: "0123456789abcdef0123456789abcdef"}, nil)
	require.NoError(t, err)

	store := memory.NewStore()
	slots := slot.NewService(store.Availability(), store.Appointments(), store.Doctors(),
		slot.Config{}, logger.Nop(), metrics.NewNop(), nil)
	doctors := doctorsvc.NewService(store.Doctors(), security.NewBcryptHasher(0), logger.Nop())

	reg := prometheus.NewRegistry()
	checks := map[string]health.Pinger{
		"database": pingFunc(func(context.Context) error { return dbErr }),
	}

	r := NewRouter(middleware.NewAuthMiddleware(tokens), Handlers{
		Health: health.NewHandler(checks, reg),
		Doctor: doctor.NewHandler(doctors, slots),
	}, RouterConfig{
		CORS:        middleware.DefaultCORSConfig(),
		Security:    middleware.DefaultSecurityConfig(),
		SizeLimit:   middleware.DefaultSizeLimitConfig(),
		Timeout:     middleware.TimeoutConfig{Duration: time.Second},
		RateLimiter: limiter,
		Metrics:     middleware.NewHTTPMetrics("test", reg),
	})
	return r.Engine()
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	engine.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndHeaders(t *testing.T) {
	engine := newTestRouter(t, nil, nil)

	w := get(engine, "/api/v1/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = get(engine, "/api/v1/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"UP"`)

	w = get(engine, "/api/v1/health/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_requests_total"))
}

func TestRouter_ReadinessDown(t *testing.T) {
	engine := newTestRouter(t, errors.New("connection refused"), nil)

	w := get(engine, "/api/v1/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"DOWN"`)
}

func TestRouter_ProtectedAndUnknownRoutes(t *testing.T) {
	engine := newTestRouter(t, nil, nil)

	w := get(engine, "/api/v1/doctors")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(engine, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"error"`)
}

func TestRouter_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: rate.Every(time.Hour), Burst: 2})
	engine := newTestRouter(t, nil, limiter)

	assert.Equal(t, http.StatusOK, get(engine, "/api/v1/health/live").Code)
	assert.Equal(t, http.StatusOK, get(engine, "/api/v1/health/live").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(engine, "/api/v1/health/live").Code)
}
