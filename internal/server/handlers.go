package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelake/carelake/internal/gold"
	"github.com/carelake/carelake/pkg/pagination"
)

// MeasureReport holds the evaluated rows of one gold measure.
type MeasureReport struct {
	MeasureID   string           `json:"measure_id"`
	MeasureName string           `json:"measure_name"`
	GeneratedAt time.Time        `json:"generated_at"`
	Results     []map[string]any `json:"results"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.deps.Version,
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	p := pagination.FromContext(c)
	runs, total, err := s.deps.Runs.ListRuns(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(runs, total, p))
}

func (s *Server) handleListRejects(c echo.Context) error {
	p := pagination.FromContext(c)
	table := c.QueryParam("table")
	rejects, total, err := s.deps.Rejects.List(c.Request().Context(), table, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("list rejects: %v", err))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rejects, total, p))
}

func (s *Server) handleListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, gold.Measures)
}

func (s *Server) handleGetMeasure(c echo.Context) error {
	m := gold.FindMeasure(c.Param("id"))
	if m == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	results, err := s.deps.Measures.Results(c.Request().Context(), *m)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: time.Now(),
		Results:     results,
	})
}

// handleTriggerRun starts one silver pass in the background and returns its
// run id immediately. Only one triggered run may be in flight at a time;
// writes are conflict-ignoring, so the guard is about sparing the database,
// not correctness.
func (s *Server) handleTriggerRun(c echo.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return echo.NewHTTPError(http.StatusConflict, "a pipeline run is already in progress")
	}

	runID := uuid.New()
	logger := s.logger.With().Str("run_id", runID.String()).Logger()
	go func() {
		defer s.running.Store(false)
		if _, err := s.deps.Runner.RunWithID(context.Background(), runID); err != nil {
			logger.Error().Err(err).Msg("triggered run failed")
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{
		"run_id": runID.String(),
		"status": "accepted",
	})
}
