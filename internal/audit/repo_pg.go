package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type rejectRepoPG struct{ pool *pgxpool.Pool }

func NewRejectRepoPG(pool *pgxpool.Pool) RejectRepository { return &rejectRepoPG{pool: pool} }

func (r *rejectRepoPG) Record(ctx context.Context, table string, payload map[string]any, reason string) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("marshal rejected payload for %s: %w", table, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit.rejected_rows (table_name, row_data, error_reason) VALUES ($1, $2, $3)`,
		table, data, reason,
	)
	if err != nil {
		return fmt.Errorf("append rejected row for %s: %w", table, err)
	}
	return nil
}

func (r *rejectRepoPG) List(ctx context.Context, table string, limit, offset int) ([]RejectedRow, int64, error) {
	var total int64
	countSQL := `SELECT COUNT(*) FROM audit.rejected_rows`
	listSQL := `SELECT table_name, row_data, error_reason, rejected_at
FROM audit.rejected_rows
ORDER BY rejected_at DESC
LIMIT $1 OFFSET $2`

	args := []any{limit, offset}
	if table != "" {
		countSQL = `SELECT COUNT(*) FROM audit.rejected_rows WHERE table_name = $1`
		listSQL = `SELECT table_name, row_data, error_reason, rejected_at
FROM audit.rejected_rows
WHERE table_name = $1
ORDER BY rejected_at DESC
LIMIT $2 OFFSET $3`
		args = []any{table, limit, offset}

		if err := r.pool.QueryRow(ctx, countSQL, table).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count rejected rows: %w", err)
		}
	} else {
		if err := r.pool.QueryRow(ctx, countSQL).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count rejected rows: %w", err)
		}
	}

	rows, err := r.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rejected rows: %w", err)
	}
	defer rows.Close()

	var out []RejectedRow
	for rows.Next() {
		var rr RejectedRow
		if err := rows.Scan(&rr.TableName, &rr.RowData, &rr.ErrorReason, &rr.RejectedAt); err != nil {
			return nil, 0, fmt.Errorf("scan rejected row: %w", err)
		}
		out = append(out, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rejected rows: %w", err)
	}

	return out, total, nil
}

// marshalPayload serializes a raw row for the audit trail. A nil payload
// becomes an empty JSON object rather than null.
func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	return json.Marshal(payload)
}

type runRepoPG struct{ pool *pgxpool.Pool }

func NewRunRepoPG(pool *pgxpool.Pool) RunRepository { return &runRepoPG{pool: pool} }

func (r *runRepoPG) RecordStageRun(ctx context.Context, run StageRun) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit.pipeline_runs (run_id, stage, status, rows_checked, rows_loaded, rows_rejected, started_at, finished_at, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.RunID, run.Stage, run.Status, run.RowsChecked, run.RowsLoaded, run.RowsRejected,
		run.StartedAt, run.FinishedAt, run.Error,
	)
	if err != nil {
		return fmt.Errorf("record stage run %s/%s: %w", run.RunID, run.Stage, err)
	}
	return nil
}

func (r *runRepoPG) ListRuns(ctx context.Context, limit, offset int) ([]StageRun, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit.pipeline_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stage runs: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT run_id, stage, status, rows_checked, rows_loaded, rows_rejected, started_at, finished_at, error
FROM audit.pipeline_runs
ORDER BY started_at DESC
LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list stage runs: %w", err)
	}
	defer rows.Close()

	var out []StageRun
	for rows.Next() {
		var sr StageRun
		if err := rows.Scan(&sr.RunID, &sr.Stage, &sr.Status, &sr.RowsChecked, &sr.RowsLoaded,
			&sr.RowsRejected, &sr.StartedAt, &sr.FinishedAt, &sr.Error); err != nil {
			return nil, 0, fmt.Errorf("scan stage run: %w", err)
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate stage runs: %w", err)
	}

	return out, total, nil
}

type loadRepoPG struct{ pool *pgxpool.Pool }

func NewLoadRepoPG(pool *pgxpool.Pool) LoadRepository { return &loadRepoPG{pool: pool} }

func (r *loadRepoPG) RecordLoad(ctx context.Context, load BronzeLoad) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit.bronze_loads (table_name, file_name, row_count, checksum, status)
VALUES ($1, $2, $3, $4, $5)`,
		load.TableName, load.FileName, load.RowCount, load.Checksum, load.Status,
	)
	if err != nil {
		return fmt.Errorf("record bronze load %s: %w", load.FileName, err)
	}
	return nil
}
