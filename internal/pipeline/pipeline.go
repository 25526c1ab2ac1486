package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelake/carelake/internal/audit"
)

// Pipeline executes an ordered list of stages as one run. Stage order is the
// dependency order: New refuses a stage list in which any stage names a
// dependency that does not run before it.
type Pipeline struct {
	engine *Engine
	stages []StageSpec
	runs   audit.RunRepository
	logger zerolog.Logger
}

// RunReport collects per-stage summaries under one run id. A failed run
// carries the summaries of every stage that started, the failed one last.
type RunReport struct {
	RunID     uuid.UUID `json:"run_id"`
	Summaries []Summary `json:"summaries"`
}

func New(engine *Engine, stages []StageSpec, runs audit.RunRepository, logger zerolog.Logger) (*Pipeline, error) {
	if engine == nil {
		return nil, fmt.Errorf("pipeline: engine is required")
	}
	if runs == nil {
		return nil, fmt.Errorf("pipeline: run repository is required")
	}
	if err := checkStageOrder(stages); err != nil {
		return nil, err
	}
	return &Pipeline{
		engine: engine,
		stages: stages,
		runs:   runs,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// checkStageOrder verifies the list is a topological order of its own
// dependency graph: every DependsOn entry must name a distinct stage placed
// earlier in the list. That shape also rules out cycles and self-references.
func checkStageOrder(stages []StageSpec) error {
	if len(stages) == 0 {
		return fmt.Errorf("pipeline: no stages configured")
	}
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s.Name == "" {
			return fmt.Errorf("pipeline: stage with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("pipeline: duplicate stage %q", s.Name)
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("pipeline: stage %q depends on %q, which does not run before it", s.Name, dep)
			}
		}
		seen[s.Name] = true
	}
	return nil
}

// Run executes every stage in order under a fresh run id, recording one
// audit row per stage. Row-level rejects never stop a run; a stage or audit
// error aborts it, leaving committed work in place.
func (p *Pipeline) Run(ctx context.Context) (RunReport, error) {
	return p.RunWithID(ctx, uuid.New())
}

// RunWithID is Run with a caller-chosen run id, for callers that must hand
// the id out before the run finishes.
func (p *Pipeline) RunWithID(ctx context.Context, runID uuid.UUID) (RunReport, error) {
	report := RunReport{RunID: runID}
	logger := p.logger.With().Str("run_id", report.RunID.String()).Logger()
	logger.Info().Int("stages", len(p.stages)).Msg("silver run started")

	for _, spec := range p.stages {
		started := time.Now().UTC()
		sum, err := p.engine.runStage(ctx, spec)
		finished := time.Now().UTC()
		report.Summaries = append(report.Summaries, sum)

		run := audit.StageRun{
			RunID:        report.RunID,
			Stage:        spec.Name,
			Status:       audit.RunStatusCompleted,
			RowsChecked:  sum.Checked,
			RowsLoaded:   sum.Loaded,
			RowsRejected: sum.Rejected,
			StartedAt:    started,
			FinishedAt:   &finished,
		}
		if err != nil {
			run.Status = audit.RunStatusFailed
			msg := err.Error()
			run.Error = &msg
		}
		if recErr := p.runs.RecordStageRun(ctx, run); recErr != nil {
			recErr = fmt.Errorf("record run history for stage %s: %w", spec.Name, recErr)
			if err == nil {
				err = recErr
			} else {
				logger.Error().Err(recErr).Msg("run history write failed after stage failure")
			}
		}
		if err != nil {
			logger.Error().Err(err).Str("stage", spec.Name).Msg("run aborted")
			return report, err
		}
	}

	logger.Info().Msg("silver run complete")
	return report, nil
}
