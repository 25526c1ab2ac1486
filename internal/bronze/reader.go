package bronze

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelake/carelake/internal/platform/db"
)

// Reader produces the raw rows of one bronze table for a stage run.
type Reader interface {
	Rows(ctx context.Context, table string) ([]Row, error)
}

type pgReader struct{ pool *pgxpool.Pool }

func NewPgReader(pool *pgxpool.Pool) Reader { return &pgReader{pool: pool} }

func (r *pgReader) Rows(ctx context.Context, table string) ([]Row, error) {
	if _, ok := Columns(table); !ok {
		return nil, fmt.Errorf("unknown bronze table %q", table)
	}

	cols, maps, err := db.QueryMaps(ctx, r.pool, fmt.Sprintf(`SELECT * FROM bronze.%s`, table))
	if err != nil {
		return nil, fmt.Errorf("read bronze.%s: %w", table, err)
	}

	rows := make([]Row, 0, len(maps))
	for _, m := range maps {
		rows = append(rows, Row{Columns: cols, Values: m})
	}
	return rows, nil
}
