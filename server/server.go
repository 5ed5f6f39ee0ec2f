// Package server is an in-memory implementation of the SlotFlow REST API
// used for local development and as the HTTP fixture in tests.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/internal/metrics"
)

// DefaultTokenTTL is the lifetime of issued access tokens
const DefaultTokenTTL = time.Hour

// Server is the development API server
type Server struct {
	data     *store
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	echo     *echo.Echo
}

// Option configures a Server
type Option func(*Server)

// WithSecret sets the token signing key
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

// WithTokenTTL sets the access token lifetime
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server with an empty data set
func New(opts ...Option) *Server {
	s := &Server{
		data:     newStore(),
		secret:   []byte("slotflow-dev-secret"),
		tokenTTL: DefaultTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			metrics.DevServerRequestCount.WithLabelValues(req.Method, c.Path(), strconv.Itoa(res.Status)).Inc()
			logger.Info("HTTP Response",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("status", res.Status),
				logger.F("size", res.Size),
				logger.F("request_id", req.Header.Get(echo.HeaderXRequestID)),
				logger.F("duration", time.Since(start).String()))
			return nil
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api", s.authMiddleware)

	api.POST("/auth/token/", s.handleToken)
	api.POST("/auth/register/", s.handleRegister)
	api.GET("/courses/", s.handleListCourses)
	api.GET("/courses/:id/", s.handleGetCourse)

	protected := api.Group("", s.requireUser)
	protected.GET("/auth/me/", s.handleMe)
	protected.PATCH("/auth/me/", s.handleUpdateProfile)
	protected.PUT("/auth/me/profile-picture/", s.handleUploadPicture)
	protected.DELETE("/auth/me/profile-picture/", s.handleDeletePicture)
	protected.POST("/auth/change-password/", s.handleChangePassword)
	protected.GET("/bookings/", s.handleListBookings)
	protected.POST("/bookings/", s.handleCreateBooking)
	protected.PATCH("/bookings/:id/cancel/", s.handleCancelBooking)

	admin := protected.Group("", s.requireAdmin)
	admin.POST("/courses/", s.handleCreateCourse)
	admin.PATCH("/courses/:id/", s.handleUpdateCourse)
	admin.DELETE("/courses/:id/", s.handleDeleteCourse)

	s.echo = e
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// detail writes a {"detail": msg} body
func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"detail": msg})
}

// fieldErrors writes a {"field": ["msg", ...]} body
func fieldErrors(c echo.Context, errs map[string][]string) error {
	return c.JSON(http.StatusBadRequest, errs)
}
