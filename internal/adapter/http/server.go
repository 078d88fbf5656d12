package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/civic-problem-map/internal/domain"
	"github.com/couchcryptid/civic-problem-map/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProblemSource is the read model the API serves from.
type ProblemSource interface {
	List(ctx context.Context, filter domain.ProblemFilter) ([]domain.ReportedProblem, error)
	Get(ctx context.Context, id string) (domain.ReportedProblem, error)
}

// Server exposes the problem and marker API alongside health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	problems   ProblemSource
	proximity  float64
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer wires the routes. proximityMeters is the marker grouping
// threshold used when a request does not supply one.
func NewServer(addr string, problems ProblemSource, ready sharedobs.ReadinessChecker, proximityMeters float64, metrics *observability.Metrics, logger *slog.Logger) *Server {
	router := httprouter.New()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      sentryMiddleware(securityHeaders(router)),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		problems:  problems,
		proximity: proximityMeters,
		metrics:   metrics,
		logger:    logger,
	}

	router.HandlerFunc(http.MethodGet, "/healthz", sharedobs.LivenessHandler())
	router.HandlerFunc(http.MethodGet, "/readyz", sharedobs.ReadinessHandler(ready))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.GET("/api/v1/problems", s.handleListProblems)
	router.GET("/api/v1/problems/:id", s.handleGetProblem)
	router.GET("/api/v1/markers", s.handleMarkers)

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// AllReady combines readiness checkers; the first failure wins.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readinessGroup(checkers)
}

type readinessGroup []sharedobs.ReadinessChecker

func (g readinessGroup) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range g {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
