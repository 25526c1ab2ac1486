package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/carelake/carelake/internal/audit"
	"github.com/carelake/carelake/internal/bronze"
	"github.com/carelake/carelake/internal/silver"
)

// StageState tracks where a stage is in its lifecycle. Rejected rows are a
// side channel, not a state: row failures never move the stage off its
// forward path, only infrastructure failures abort it.
type StageState string

const (
	StateNotStarted StageState = "not_started"
	StateValidating StageState = "validating"
	StateResolving  StageState = "resolving_references"
	StateWriting    StageState = "writing"
	StateDone       StageState = "done"
	StateFailed     StageState = "failed"
)

// StageSpec declares one silver stage. Validate runs per row and is pure.
// Snapshot loads the referenced key sets exactly once, after the stage's
// dependencies have committed; Resolve checks one admitted record against
// them. Insert performs a single bulk conflict-ignore write and reports how
// many rows the database actually took. Snapshot and Resolve are nil for
// stages without references.
type StageSpec struct {
	Name      string
	Source    string
	DependsOn []string

	Validate func(row bronze.Row) (any, *Violation)
	Snapshot func(ctx context.Context) (map[string]silver.KeySet, error)
	Resolve  func(row bronze.Row, rec any, keys map[string]silver.KeySet) *Violation
	Insert   func(ctx context.Context, recs []any) (int64, error)
}

// Summary is the per-stage outcome. Loaded counts rows the insert actually
// wrote; Skipped counts admitted rows whose key already existed. Checked is
// always Loaded + Skipped + Rejected.
type Summary struct {
	Stage    string `json:"stage"`
	Checked  int64  `json:"rows_checked"`
	Loaded   int64  `json:"rows_loaded"`
	Skipped  int64  `json:"rows_skipped"`
	Rejected int64  `json:"rows_rejected"`
}

// outcome carries one row through the stage: the raw row for the reject
// sink, the validated record while the row is still in play, and the
// violation once it is not.
type outcome struct {
	row       bronze.Row
	rec       any
	violation *Violation
}

// Engine runs stages against a bronze reader and a reject sink. Validation
// fans out over workers; resolution and writing stay sequential.
type Engine struct {
	reader  bronze.Reader
	rejects audit.RejectRepository
	workers int
	logger  zerolog.Logger
}

// NewEngine builds a stage engine. workers <= 0 means one worker per CPU.
func NewEngine(reader bronze.Reader, rejects audit.RejectRepository, workers int, logger zerolog.Logger) *Engine {
	return &Engine{
		reader:  reader,
		rejects: rejects,
		workers: workers,
		logger:  logger.With().Str("component", "pipeline").Logger(),
	}
}

type stageRun struct {
	state  StageState
	logger zerolog.Logger
}

func (r *stageRun) to(next StageState) {
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(next)).Msg("stage transition")
	r.state = next
}

// runStage drives one stage through the full state machine. Any returned
// error is an infrastructure failure; already-committed silver rows and
// reject records stay put, there is no rollback.
func (e *Engine) runStage(ctx context.Context, spec StageSpec) (Summary, error) {
	sum := Summary{Stage: spec.Name}
	run := &stageRun{state: StateNotStarted, logger: e.logger.With().Str("stage", spec.Name).Logger()}
	fail := func(err error) (Summary, error) {
		run.to(StateFailed)
		return sum, err
	}

	run.to(StateValidating)
	rows, err := e.reader.Rows(ctx, spec.Source)
	if err != nil {
		return fail(fmt.Errorf("stage %s: %w", spec.Name, err))
	}
	sum.Checked = int64(len(rows))
	outcomes := e.validateRows(spec, rows)

	run.to(StateResolving)
	if spec.Snapshot != nil {
		keys, err := spec.Snapshot(ctx)
		if err != nil {
			return fail(fmt.Errorf("stage %s: %w", spec.Name, err))
		}
		for i := range outcomes {
			o := &outcomes[i]
			if o.violation != nil {
				continue
			}
			if v := spec.Resolve(o.row, o.rec, keys); v != nil {
				o.rec, o.violation = nil, v
			}
		}
	}

	run.to(StateWriting)
	admitted := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		if o.violation == nil {
			admitted = append(admitted, o.rec)
		}
	}
	var inserted int64
	if len(admitted) > 0 {
		inserted, err = spec.Insert(ctx, admitted)
		if err != nil {
			return fail(fmt.Errorf("stage %s: write silver.%s: %w", spec.Name, spec.Name, err))
		}
	}
	sum.Loaded = inserted
	sum.Skipped = int64(len(admitted)) - inserted

	// Rejects append after the batch commit, one durable write each. A sink
	// failure is fatal: losing audit evidence is worse than stopping the run.
	for _, o := range outcomes {
		if o.violation == nil {
			continue
		}
		if err := e.rejects.Record(ctx, spec.Name, o.row.Payload(), o.violation.Reason); err != nil {
			return fail(fmt.Errorf("stage %s: record reject: %w", spec.Name, err))
		}
		sum.Rejected++
	}

	run.to(StateDone)
	run.logger.Info().Msgf("%s | %d rows checked | %d loaded | %d rejected", spec.Name, sum.Checked, sum.Loaded, sum.Rejected)
	if sum.Skipped > 0 {
		run.logger.Debug().Int64("rows", sum.Skipped).Msg("existing keys skipped")
	}
	return sum, nil
}

// validateRows fans row validation out over the worker pool. Workers write
// to disjoint slots of the outcomes slice, so results keep bronze order and
// need no locking.
func (e *Engine) validateRows(spec StageSpec, rows []bronze.Row) []outcome {
	outcomes := make([]outcome, len(rows))

	workers := e.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(rows) {
		workers = len(rows)
	}
	if workers <= 1 {
		for i, row := range rows {
			rec, v := spec.Validate(row)
			outcomes[i] = outcome{row: row, rec: rec, violation: v}
		}
		return outcomes
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec, v := spec.Validate(rows[i])
				outcomes[i] = outcome{row: rows[i], rec: rec, violation: v}
			}
		}()
	}
	for i := range rows {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return outcomes
}
