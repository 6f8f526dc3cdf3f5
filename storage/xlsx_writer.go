package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"hotel-panel/models"
	"hotel-panel/utils"
)

// SheetName is the worksheet holding the panel.
const SheetName = "panel"

// XLSXWriter writes panels as Excel workbooks for analysts.
type XLSXWriter struct {
	dir    string
	logger *utils.Logger
}

// NewXLSXWriter creates a writer whose workbooks land in dir.
func NewXLSXWriter(dir string, logger *utils.Logger) *XLSXWriter {
	return &XLSXWriter{dir: dir, logger: logger}
}

// WritePanel writes panel to <dir>/<name>.xlsx. Region and month are text
// cells, values are numbers, nulls are left blank.
func (x *XLSXWriter) WritePanel(_ context.Context, name string, panel *models.Table) error {
	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}
	path := filepath.Join(x.dir, name+".xlsx")

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("xlsx: stream writer: %w", err)
	}

	header := panel.Header()
	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}

	for i, row := range panel.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		if err := sw.SetRow(cell, rowCells(panel, row)); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx: flush: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", path, err)
	}

	if x.logger != nil {
		x.logger.Info("[xlsx] Saved %s → %s (%d rows)", name, path, panel.Len())
	}
	return nil
}

// Close is a no-op; workbooks are closed after each write.
func (x *XLSXWriter) Close() error { return nil }

func rowCells(t *models.Table, row *models.Observation) []interface{} {
	cells := make([]interface{}, 0, len(t.Columns)+2)
	if t.Regional {
		cells = append(cells, row.Region)
	}
	cells = append(cells, row.Month.Format(models.DateLayout))
	for _, v := range row.Values {
		if v.Valid {
			cells = append(cells, v.Float64)
		} else {
			cells = append(cells, nil)
		}
	}
	return cells
}
