package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/sirpyerre/account-api/docs"
	"github.com/sirpyerre/account-api/internal/api/handler"
	"github.com/sirpyerre/account-api/internal/api/middleware"
	"github.com/sirpyerre/account-api/internal/core/domain"
	"github.com/sirpyerre/account-api/internal/core/ports"
)

// AuthService is what the router needs from the account service: the public
// operations plus a hook for refused admin requests.
type AuthService interface {
	ports.AuthService
	RecordDenied(username, path string)
}

// RateLimit bounds requests per client IP on the credential endpoints.
// A zero RPS disables the limiter.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Deps carries everything NewRouter wires into the Echo instance.
type Deps struct {
	AuthService AuthService
	AuditReader ports.AuditReader // optional
	Logger      zerolog.Logger
	Probes      map[string]handler.Probe
	StaticDir   string
	RateLimit   RateLimit

	// Registry receives the HTTP metrics. Defaults to the global Prometheus registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Registry != nil {
		registerer, gatherer = deps.Registry, deps.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger(deps.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "accounts",
		Registerer: registerer,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	userHandler := handler.NewUserHandler(deps.AuthService, deps.AuditReader)
	authenticate := middleware.Authenticate(deps.AuthService)
	recordDenied := func(c echo.Context, user *domain.User) {
		deps.AuthService.RecordDenied(user.Username, c.Path())
	}

	// --- Auth routes ---
	var limit []echo.MiddlewareFunc
	if deps.RateLimit.RPS > 0 {
		limit = append(limit, newRateLimiter(deps.RateLimit))
	}
	e.POST("/register", authHandler.Register, limit...)
	e.POST("/login", authHandler.Login, limit...)

	// --- Authenticated routes ---
	e.GET("/users/me", userHandler.Me, authenticate)

	admin := e.Group("/admin", authenticate, middleware.Authorize(domain.RoleAdmin, recordDenied))
	admin.GET("/users", userHandler.List)
	admin.GET("/users/:username/events", userHandler.Events)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Probes)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operational ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if deps.StaticDir != "" {
		e.Static("/static", deps.StaticDir)
	}

	return e
}

func newRateLimiter(cfg RateLimit) echo.MiddlewareFunc {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RPS),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "unable to identify client").SetInternal(err)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded").SetInternal(err)
		},
	})
}
