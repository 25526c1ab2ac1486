package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stage run statuses. Run rows are appended once per stage after the stage
// finishes; there is no in-place update.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Bronze load statuses.
const (
	LoadStatusLoaded      = "loaded"
	LoadStatusMissingFile = "missing_file"
)

// RejectedRow maps to audit.rejected_rows: the raw payload of a failed record
// exactly as it was read, plus the reason it was turned away.
type RejectedRow struct {
	TableName   string          `db:"table_name" json:"table_name"`
	RowData     json.RawMessage `db:"row_data" json:"row_data"`
	ErrorReason string          `db:"error_reason" json:"error_reason"`
	RejectedAt  time.Time       `db:"rejected_at" json:"rejected_at"`
}

// StageRun maps to audit.pipeline_runs: the durable form of one stage's
// summary counts within a pipeline run.
type StageRun struct {
	RunID        uuid.UUID  `db:"run_id" json:"run_id"`
	Stage        string     `db:"stage" json:"stage"`
	Status       string     `db:"status" json:"status"`
	RowsChecked  int64      `db:"rows_checked" json:"rows_checked"`
	RowsLoaded   int64      `db:"rows_loaded" json:"rows_loaded"`
	RowsRejected int64      `db:"rows_rejected" json:"rows_rejected"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Error        *string    `db:"error" json:"error,omitempty"`
}

// BronzeLoad maps to audit.bronze_loads: the outcome of staging one CSV file
// into its bronze table.
type BronzeLoad struct {
	ID        int64     `db:"id" json:"id"`
	TableName string    `db:"table_name" json:"table_name"`
	FileName  string    `db:"file_name" json:"file_name"`
	RowCount  int64     `db:"row_count" json:"row_count"`
	Checksum  *string   `db:"checksum" json:"checksum,omitempty"`
	Status    string    `db:"status" json:"status"`
	LoadedAt  time.Time `db:"loaded_at" json:"loaded_at"`
}
