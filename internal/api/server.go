package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"plan-tracker/internal/logger"
	"plan-tracker/internal/service"
)

// Services bundles the engine operations the HTTP layer drives.
type Services struct {
	Templates *service.TemplateService
	Plans     *service.PlanService
	Scoring   *service.ScoringService
	Digest    *service.DigestService
}

// Server is the JSON API in front of the engine.
type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(addr string, secret []byte, services Services) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler
	e.Logger.SetOutput(logger.Standard().Writer())

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status,
				"latency", v.Latency, "id", v.RequestID)
			return nil
		},
	}))

	h := &handler{services: services}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	g := e.Group("/api", RequireAuth(secret))
	g.GET("/templates", h.listTemplates)
	g.GET("/templates/:id", h.getTemplate)
	g.POST("/templates", h.createTemplate)
	g.POST("/templates/:id/start", h.startPlan)
	g.GET("/me", h.me)
	g.PUT("/tasks/:id/status", h.setTaskStatus)
	g.POST("/plans/:id/tasks", h.addTask)

	return &Server{echo: e, addr: addr}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
