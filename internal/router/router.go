package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// PublicHandler registers routes that need no token.
type PublicHandler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// ProtectedHandler registers routes guarded by the auth middleware.
type ProtectedHandler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

type Handlers struct {
	Health       PublicHandler
	Auth         PublicHandler
	Doctor       ProtectedHandler
	Appointment  ProtectedHandler
	Patient      ProtectedHandler
	Prescription ProtectedHandler
}

type RouterConfig struct {
	// Mode is passed to gin.SetMode; empty keeps the current mode.
	Mode      string
	CORS      middleware.CORSConfig
	Security  middleware.SecurityConfig
	SizeLimit middleware.SizeLimitConfig
	Timeout   middleware.TimeoutConfig
	// RateLimiter and Metrics are optional.
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(config.SizeLimit),
		middleware.Timeout(config.Timeout),
	)
	if config.RateLimiter != nil {
		engine.Use(config.RateLimiter.RateLimit())
	}
	if config.Metrics != nil {
		engine.Use(config.Metrics.Middleware())
	}
	engine.Use(middleware.ErrorHandler())

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}
	r.setup()
	return r
}

func (r *Router) setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Public routes
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}
	if r.handlers.Auth != nil {
		r.handlers.Auth.RegisterRoutes(api)
	}

	// Protected routes; each handler applies Authenticate and its role checks.
	for _, h := range []ProtectedHandler{
		r.handlers.Doctor,
		r.handlers.Appointment,
		r.handlers.Patient,
		r.handlers.Prescription,
	} {
		if h != nil {
			h.RegisterRoutes(api, r.auth)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httputil.Response{Status: "error", Message: "route not found"})
	})
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
