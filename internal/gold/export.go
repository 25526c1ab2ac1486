package gold

import (
	"context"
	"database/sql/driver"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carelake/carelake/internal/platform/db"
)

// Exporter writes gold tables to CSV files for downstream consumers.
type Exporter struct {
	pool   *pgxpool.Pool
	dir    string
	logger zerolog.Logger
}

func NewExporter(pool *pgxpool.Pool, dir string, logger zerolog.Logger) *Exporter {
	return &Exporter{pool: pool, dir: dir, logger: logger.With().Str("component", "export").Logger()}
}

// Export writes every gold table to <dir>/<table>.csv, overwriting previous
// exports, and returns the written paths in registry order.
func (e *Exporter) Export(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir %s: %w", e.dir, err)
	}

	paths := make([]string, 0, len(Measures))
	for _, m := range Measures {
		cols, rows, err := db.QueryMaps(ctx, e.pool, `SELECT * FROM gold.`+m.Table)
		if err != nil {
			return nil, fmt.Errorf("read gold.%s: %w", m.Table, err)
		}
		path := filepath.Join(e.dir, m.Table+".csv")
		if err := writeCSVFile(path, cols, rows); err != nil {
			return nil, err
		}
		paths = append(paths, path)
		e.logger.Info().Str("table", m.Table).Int("rows", len(rows)).Str("file", path).Msg("gold table exported")
	}
	return paths, nil
}

func writeCSVFile(path string, cols []string, rows []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeCSV(f, cols, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, cols []string, rows []map[string]any) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			record[i] = csvValue(row[col])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvValue renders one cell. NULL becomes the empty cell; dates at midnight
// print date-only; NUMERIC values surface through driver.Valuer.
func csvValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	}
	if dv, ok := v.(driver.Valuer); ok {
		if val, err := dv.Value(); err == nil && val != nil {
			return fmt.Sprintf("%v", val)
		}
	}
	return fmt.Sprintf("%v", v)
}
