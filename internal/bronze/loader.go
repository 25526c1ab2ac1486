package bronze

import (
	"context"
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/carelake/carelake/internal/audit"
)

// Loader stages CSV files into bronze tables. One transaction per file; a
// missing file is logged and recorded, not an error; a malformed file aborts
// the load.
type Loader struct {
	pool   *pgxpool.Pool
	loads  audit.LoadRepository
	dir    string
	logger zerolog.Logger
}

func NewLoader(pool *pgxpool.Pool, loads audit.LoadRepository, dir string, logger zerolog.Logger) *Loader {
	return &Loader{pool: pool, loads: loads, dir: dir, logger: logger}
}

// stagedFile is one parsed CSV ready for staging.
type stagedFile struct {
	Columns  []string
	Rows     [][]any
	Checksum string
}

// parseCSVFile reads a CSV, validates that its header covers the expected
// columns, and returns rows aligned to the expected column order. Empty cells
// become nil so they stage as NULL. Extra columns are ignored. The checksum
// covers the file bytes.
func parseCSVFile(path string, expected []string) (*stagedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hasher := md5.New()
	reader := csv.NewReader(io.TeeReader(f, hasher))

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: file is empty", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}

	positions := make([]int, len(expected))
	for i, col := range expected {
		pos, ok := index[col]
		if !ok {
			return nil, fmt.Errorf("%s: missing column %q", filepath.Base(path), col)
		}
		positions[i] = pos
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}

		row := make([]any, len(expected))
		for i, pos := range positions {
			if pos >= len(record) {
				continue
			}
			if cell := record[pos]; cell != "" {
				row[i] = cell
			}
		}
		rows = append(rows, row)
	}

	return &stagedFile{
		Columns:  expected,
		Rows:     rows,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// insertSQL builds the parameterized insert for one bronze table.
func insertSQL(table string, cols []string) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO bronze.%s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

func (l *Loader) stageFile(ctx context.Context, table string, sf *stagedFile) (int64, error) {
	if len(sf.Rows) == 0 {
		return 0, nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin staging transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := insertSQL(table, sf.Columns)
	batch := &pgx.Batch{}
	for _, row := range sf.Rows {
		batch.Queue(sql, row...)
	}

	results := tx.SendBatch(ctx, batch)
	for range sf.Rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("insert into bronze.%s: %w", table, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close staging batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit staging transaction: %w", err)
	}
	return int64(len(sf.Rows)), nil
}

func (l *Loader) truncateAll(ctx context.Context) error {
	names := make([]string, 0, len(loadOrder))
	for _, ft := range loadOrder {
		names = append(names, "bronze."+ft.Table)
	}
	if _, err := l.pool.Exec(ctx, "TRUNCATE "+strings.Join(names, ", ")); err != nil {
		return fmt.Errorf("truncate bronze tables: %w", err)
	}
	l.logger.Info().Msg("truncated bronze tables")
	return nil
}

// Run stages every known CSV in the input directory into its bronze table and
// records each outcome in the load log. With truncate set, bronze tables are
// emptied first so a full reload is idempotent.
func (l *Loader) Run(ctx context.Context, truncate bool) ([]audit.BronzeLoad, error) {
	if truncate {
		if err := l.truncateAll(ctx); err != nil {
			return nil, err
		}
	}

	var results []audit.BronzeLoad
	for _, ft := range loadOrder {
		path := filepath.Join(l.dir, ft.File)

		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			l.logger.Warn().Str("file", path).Msg("input file not found, skipping")
			entry := audit.BronzeLoad{
				TableName: ft.Table,
				FileName:  ft.File,
				Status:    audit.LoadStatusMissingFile,
			}
			if err := l.loads.RecordLoad(ctx, entry); err != nil {
				return results, err
			}
			results = append(results, entry)
			continue
		}

		expected, _ := Columns(ft.Table)
		sf, err := parseCSVFile(path, expected)
		if err != nil {
			return results, fmt.Errorf("stage %s: %w", ft.File, err)
		}

		count, err := l.stageFile(ctx, ft.Table, sf)
		if err != nil {
			return results, fmt.Errorf("stage %s: %w", ft.File, err)
		}

		checksum := sf.Checksum
		entry := audit.BronzeLoad{
			TableName: ft.Table,
			FileName:  ft.File,
			RowCount:  count,
			Checksum:  &checksum,
			Status:    audit.LoadStatusLoaded,
		}
		if err := l.loads.RecordLoad(ctx, entry); err != nil {
			return results, err
		}
		results = append(results, entry)

		l.logger.Info().
			Str("table", "bronze."+ft.Table).
			Str("file", ft.File).
			Int64("rows", count).
			Str("checksum", checksum).
			Msg("staged file")
	}

	return results, nil
}
