package storage

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"hotel-panel/models"
	"hotel-panel/utils"
)

// CSVWriter writes tables as UTF-8 CSV with a header row. Nulls are written
// as empty cells. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	dir    string
	logger *utils.Logger
}

// NewCSVWriter creates a writer whose panels land in dir.
func NewCSVWriter(dir string, logger *utils.Logger) *CSVWriter {
	return &CSVWriter{dir: dir, logger: logger}
}

// WritePanel writes panel to <dir>/<name>.csv.
func (c *CSVWriter) WritePanel(_ context.Context, name string, panel *models.Table) error {
	return c.WriteTable(filepath.Join(c.dir, name+".csv"), panel)
}

// WriteTable creates (or truncates) the file at path and writes t into it.
// Intermediate directories are created automatically.
func (c *CSVWriter) WriteTable(path string, t *models.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Header()); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, row := range t.Rows {
		if err := w.Write(FormatRow(t, row)); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("csv: close %q: %w", path, err)
	}

	if c.logger != nil {
		c.logger.Debug("[csv] Wrote %d rows × %d columns → %s", t.Len(), len(t.Header()), path)
	}
	return nil
}

// Close is a no-op; files are closed after each write.
func (c *CSVWriter) Close() error { return nil }

// FormatRow renders one observation in Header() order.
func FormatRow(t *models.Table, row *models.Observation) []string {
	rec := make([]string, 0, len(t.Columns)+2)
	if t.Regional {
		rec = append(rec, row.Region)
	}
	rec = append(rec, row.Month.Format(models.DateLayout))
	for i := range t.Columns {
		var v sql.NullFloat64
		if i < len(row.Values) {
			v = row.Values[i]
		}
		rec = append(rec, FormatValue(v))
	}
	return rec
}

// FormatValue renders a nullable float in its shortest exact form.
func FormatValue(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}
