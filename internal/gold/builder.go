package gold

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// MeasureResult reports how many rows one measure materialized.
type MeasureResult struct {
	ID    string `json:"id"`
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Builder rebuilds the gold layer from silver.
type Builder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewBuilder(pool *pgxpool.Pool, logger zerolog.Logger) *Builder {
	return &Builder{pool: pool, logger: logger.With().Str("component", "gold").Logger()}
}

// Build truncates and refills every gold table in registry order, all inside
// one transaction so readers never observe a half-built layer. Gold holds no
// history: each build replaces the previous one entirely.
func (b *Builder) Build(ctx context.Context) ([]MeasureResult, error) {
	b.logger.Info().Msg("building gold layer")

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin gold build: %w", err)
	}
	defer tx.Rollback(ctx)

	results := make([]MeasureResult, 0, len(Measures))
	for _, m := range Measures {
		if _, err := tx.Exec(ctx, `TRUNCATE gold.`+m.Table); err != nil {
			return nil, fmt.Errorf("truncate gold.%s: %w", m.Table, err)
		}
		tag, err := tx.Exec(ctx, m.SQL)
		if err != nil {
			return nil, fmt.Errorf("build gold.%s: %w", m.Table, err)
		}
		results = append(results, MeasureResult{ID: m.ID, Table: m.Table, Rows: tag.RowsAffected()})
		b.logger.Debug().Str("measure", m.ID).Int64("rows", tag.RowsAffected()).Msg("measure built")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit gold build: %w", err)
	}
	b.logger.Info().Int("measures", len(results)).Msg("gold layer build complete")
	return results, nil
}
