package server

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carelake/carelake/internal/audit"
	"github.com/carelake/carelake/internal/gold"
	"github.com/carelake/carelake/internal/pipeline"
	"github.com/carelake/carelake/internal/platform/db"
)

// PipelineRunner triggers one silver pass under a caller-chosen run id.
type PipelineRunner interface {
	RunWithID(ctx context.Context, runID uuid.UUID) (pipeline.RunReport, error)
}

// MeasureSource reads the current rows of a gold measure.
type MeasureSource interface {
	Results(ctx context.Context, m gold.Measure) ([]map[string]any, error)
}

// Deps are the collaborators the operational API serves.
type Deps struct {
	Pool     *pgxpool.Pool
	Rejects  audit.RejectRepository
	Runs     audit.RunRepository
	Measures MeasureSource
	Runner   PipelineRunner
	Version  string
}

// Server is the operational HTTP API: health probes, run history, reject
// browsing, gold measures, and an async pipeline trigger.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	logger  zerolog.Logger
	running atomic.Bool
}

// New assembles the echo app with the middleware chain and routes. An empty
// jwtSecret leaves /api/v1 open; anything else requires a bearer token.
// Health probes are never guarded.
func New(deps Deps, jwtSecret string, logger zerolog.Logger) *Server {
	s := &Server{deps: deps, logger: logger.With().Str("component", "server").Logger()}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(s.logger))
	e.Use(RequestID())
	e.Use(Logger(s.logger))

	e.GET("/health", s.handleHealth)
	if deps.Pool != nil {
		e.GET("/ready", db.ReadyHandler(deps.Pool))
	}

	api := e.Group("/api/v1")
	if jwtSecret != "" {
		api.Use(RequireJWT([]byte(jwtSecret)))
	}
	api.GET("/runs", s.handleListRuns)
	api.GET("/rejects", s.handleListRejects)
	api.GET("/measures", s.handleListMeasures)
	api.GET("/measures/:id", s.handleGetMeasure)
	api.POST("/pipeline/run", s.handleTriggerRun)

	s.echo = e
	return s
}

// Start serves HTTP on the port until Shutdown is called.
func (s *Server) Start(port string) error {
	addr := ":" + port
	s.logger.Info().Str("addr", addr).Msg("starting server")
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router, used by handler tests.
func (s *Server) Echo() *echo.Echo { return s.echo }
