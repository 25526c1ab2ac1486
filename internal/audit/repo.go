package audit

import "context"

// RejectRepository is the reject sink plus its read side. Record is an
// independent durable append: it commits on its own, separately from any
// stage's batch write, so audit evidence survives later failures in the same
// run. A Record error is an infrastructure failure and is fatal to the run.
type RejectRepository interface {
	Record(ctx context.Context, table string, payload map[string]any, reason string) error
	List(ctx context.Context, table string, limit, offset int) ([]RejectedRow, int64, error)
}

// RunRepository persists and lists per-stage run summaries.
type RunRepository interface {
	RecordStageRun(ctx context.Context, run StageRun) error
	ListRuns(ctx context.Context, limit, offset int) ([]StageRun, int64, error)
}

// LoadRepository persists bronze staging outcomes.
type LoadRepository interface {
	RecordLoad(ctx context.Context, load BronzeLoad) error
}
