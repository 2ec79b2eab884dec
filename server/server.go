// Package server exposes the management API for collection runs
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/brettboylen/social-listener/db"
	"github.com/brettboylen/social-listener/jobs"
	"github.com/brettboylen/social-listener/models"
	"github.com/brettboylen/social-listener/worker"
)

// Server is the echo HTTP API
type Server struct {
	echo *echo.Echo
	svc  *CollectionService
	log  *logrus.Logger
}

// New builds the router. maxRequestsPerMinute <= 0 disables rate limiting.
func New(svc *CollectionService, maxRequestsPerMinute int, log *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if maxRequestsPerMinute > 0 {
		e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig(maxRequestsPerMinute)))
	}

	s := &Server{echo: e, svc: svc, log: log}

	api := e.Group("/api")
	api.POST("/collections", s.createCollection)
	api.GET("/collections/:id", s.getCollection)
	api.POST("/collections/:id/cancel", s.cancelCollection)
	api.POST("/engagements/refresh", s.refreshEngagements)
	api.POST("/enrichments", s.enrich)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	return s
}

func rateLimiterConfig(maxRequestsPerMinute int) middleware.RateLimiterConfig {
	requestsPerSecond := float64(maxRequestsPerMinute) / 60.0
	tooMany := func(c echo.Context) error {
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Rate limit exceeded, please try again later",
		})
	}

	return middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(requestsPerSecond),
				Burst:     5,
				ExpiresIn: 3 * time.Minute,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return tooMany(c)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return tooMany(c)
		},
	}
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on port until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", port).Info("Starting API server")
		if err := s.echo.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) createCollection(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	id, err := s.svc.Create(c.Request().Context(), req)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"collection_id": id,
		"status":        string(models.StatePending),
	})
}

func (s *Server) getCollection(c echo.Context) error {
	status, err := s.svc.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) cancelCollection(c echo.Context) error {
	id := c.Param("id")
	collected, err := s.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"collection_id":   id,
		"status":          models.StateCancelled,
		"posts_collected": collected,
	})
}

func (s *Server) refreshEngagements(c echo.Context) error {
	var req worker.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := s.svc.Refresh(c.Request().Context(), req); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func (s *Server) enrich(c echo.Context) error {
	var job jobs.EnrichmentJob
	if err := c.Bind(&job); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := s.svc.Enrich(c.Request().Context(), job); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "dispatched"})
}

// errorResponse maps domain errors onto status codes
func (s *Server) errorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidConfig), errors.Is(err, worker.ErrEmptyRefresh),
		errors.Is(err, ErrEmptyEnrichment):
		code = http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		code = http.StatusConflict
	}

	if code == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}
	return c.JSON(code, map[string]string{"error": err.Error()})
}
