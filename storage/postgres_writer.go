package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"hotel-panel/models"
	"hotel-panel/utils"
)

// LongRow is one cell of a panel in long format.
type LongRow struct {
	Region   string
	Month    time.Time
	Variable string
	Position int
	Value    sql.NullFloat64
}

// PostgresWriter persists panels to PostgreSQL as a long table keyed by
// (panel, region, month, variable).
type PostgresWriter struct {
	db     *sql.DB
	runID  uuid.UUID
	logger *utils.Logger
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter. Rows written through it carry runID.
func NewPostgresWriter(ctx context.Context, dsn string, runID uuid.UUID, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := utils.RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	pw := &PostgresWriter{db: db, runID: runID, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS panel_observations (
			panel       VARCHAR(64)      NOT NULL,
			region      VARCHAR(2)       NOT NULL DEFAULT '',
			month       DATE             NOT NULL,
			variable    VARCHAR(64)      NOT NULL,
			position    INTEGER          NOT NULL,
			value       DOUBLE PRECISION NULL,
			run_id      UUID             NOT NULL,
			created_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			PRIMARY KEY (panel, region, month, variable)
		);

		CREATE INDEX IF NOT EXISTS idx_panel_observations_variable ON panel_observations(panel, variable);
		CREATE INDEX IF NOT EXISTS idx_panel_observations_run      ON panel_observations(run_id);
	`)
	return err
}

// WritePanel replaces the stored copy of panel name in a single transaction.
func (pw *PostgresWriter) WritePanel(ctx context.Context, name string, panel *models.Table) error {
	rows := ToLong(panel)

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM panel_observations WHERE panel = $1", name); err != nil {
		return fmt.Errorf("postgres: clear %s: %w", name, err)
	}

	const batchSize = 500
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		query, args := insertStatement(name, pw.runID, rows[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert %s batch %d: %w", name, i/batchSize, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	pw.logger.Info("[postgres] Saved %s: %d rows (%d cells)", name, panel.Len(), len(rows))
	return nil
}

// FetchPanel reads panel name back into a table.
func (pw *PostgresWriter) FetchPanel(ctx context.Context, name string) (*models.Table, error) {
	rows, err := pw.db.QueryContext(ctx, `
		SELECT region, month, variable, position, value
		FROM panel_observations
		WHERE panel = $1
		ORDER BY region, month, position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch %s: %w", name, err)
	}
	defer rows.Close()

	var long []LongRow
	for rows.Next() {
		var r LongRow
		if err := rows.Scan(&r.Region, &r.Month, &r.Variable, &r.Position, &r.Value); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		long = append(long, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch %s: %w", name, err)
	}
	return FromLong(name, long), nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// ToLong melts a table into one row per (region, month, variable). Nulls are kept.
func ToLong(t *models.Table) []LongRow {
	out := make([]LongRow, 0, t.Len()*len(t.Columns))
	for _, row := range t.Rows {
		for j, col := range t.Columns {
			out = append(out, LongRow{
				Region:   row.Region,
				Month:    row.Month,
				Variable: col,
				Position: j,
				Value:    row.Values[j],
			})
		}
	}
	return out
}

// FromLong pivots long rows back into a table. Column order follows Position;
// rows come out sorted by (region, month).
func FromLong(name string, long []LongRow) *models.Table {
	positions := make(map[string]int)
	regional := false
	for _, r := range long {
		if p, ok := positions[r.Variable]; !ok || r.Position < p {
			positions[r.Variable] = r.Position
		}
		if r.Region != "" {
			regional = true
		}
	}
	cols := make([]string, 0, len(positions))
	for c := range positions {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		if positions[cols[i]] != positions[cols[j]] {
			return positions[cols[i]] < positions[cols[j]]
		}
		return cols[i] < cols[j]
	})

	t := models.NewTable(name, regional, cols...)
	index := make(map[models.Key]*models.Observation)
	for _, r := range long {
		row := models.Observation{Region: r.Region, Month: r.Month}
		key := models.KeyOf(&row)
		obs, ok := index[key]
		if !ok {
			obs = t.Append(r.Region, r.Month)
			index[key] = obs
		}
		obs.Values[t.ColumnIndex(r.Variable)] = r.Value
	}
	t.Sort()
	return t
}

func insertStatement(panel string, runID uuid.UUID, batch []LongRow) (string, []interface{}) {
	const fields = 7
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*fields)

	for idx, r := range batch {
		base := idx * fields
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7))
		valueArgs = append(valueArgs,
			panel, r.Region, r.Month.Format(models.DateLayout), r.Variable, r.Position, r.Value, runID.String())
	}

	query := fmt.Sprintf(`
		INSERT INTO panel_observations (panel, region, month, variable, position, value, run_id)
		VALUES %s
		ON CONFLICT (panel, region, month, variable) DO NOTHING
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}
