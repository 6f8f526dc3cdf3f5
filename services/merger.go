package services

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"hotel-panel/models"
	"hotel-panel/storage"
	"hotel-panel/utils"
)

// PanelName is the name of the merged panel.
const PanelName = "hotel_panel"

// Source is one input file of the merge.
type Source struct {
	Name string
	Path string
}

// Merger left-joins the auxiliary tables onto the base table.
type Merger struct {
	reader *storage.CSVReader
	logger *utils.Logger
}

// NewMerger creates a Merger with the given logger.
func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{reader: storage.NewCSVReader(logger), logger: logger}
}

// MergeFiles reads base and the auxiliary files and merges them. A missing
// base file returns ErrMissingBase; a missing auxiliary file is skipped. A
// table without a date column, or a base without a region column, returns a
// *models.MissingColumnError.
func (m *Merger) MergeFiles(base Source, aux []Source) (*models.Table, error) {
	baseTable, err := m.reader.ReadTable(base.Path, base.Name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("merger: %w: %s", ErrMissingBase, base.Path)
		}
		return nil, fmt.Errorf("merger: %w", err)
	}
	m.logger.Info("[merger] Loaded %-22s → %7d rows | %d countries",
		base.Name, baseTable.Len(), len(baseTable.Regions()))

	tables := make([]*models.Table, 0, len(aux))
	for _, src := range aux {
		t, err := m.reader.ReadTable(src.Path, src.Name)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			m.logger.Warn("[merger] %s not found → skipping", src.Name)
			continue
		case errors.Is(err, models.ErrMissingColumn):
			return nil, fmt.Errorf("merger: %w", err)
		case err != nil:
			m.logger.Warn("[merger] %s unreadable → skipping: %v", src.Name, err)
			continue
		}

		info := "no region column"
		if t.Regional {
			info = fmt.Sprintf("%d countries", len(t.Regions()))
		}
		m.logger.Info("[merger] Loaded %-22s → %7d rows | %s", src.Name, t.Len(), info)
		tables = append(tables, t)
	}

	return m.Merge(baseTable, tables...)
}

// Merge returns a new panel holding one row per (region, month) of base,
// widened with the columns of each auxiliary table in order. Regional tables
// join on (region, month); month-only tables join on month and apply to
// every region. A column already present in the panel is not overwritten.
func (m *Merger) Merge(base *models.Table, aux ...*models.Table) (*models.Table, error) {
	if !base.Regional {
		return nil, &models.MissingColumnError{
			Table: base.Name, Column: models.ColRegion, Candidates: storage.RegionCandidates,
		}
	}

	panel := base.Clone()
	panel.Name = PanelName
	if n := panel.Dedupe(); n > 0 {
		m.logger.Warn("[merger] %s: dropped %d duplicate region-months", base.Name, n)
	}

	for _, t := range aux {
		if t == nil {
			continue
		}
		m.join(panel, t)
	}

	if n := panel.Dedupe(); n > 0 {
		m.logger.Warn("[merger] Dropped %d duplicate region-months after merge", n)
	}
	panel.Sort()

	if bad := NonMonotonicRegions(panel); len(bad) > 0 {
		m.logger.Warn("[merger] Months not increasing for: %s", strings.Join(bad, ", "))
	}

	m.logger.Info("[merger] Merged panel: %d rows × %d columns", panel.Len(), len(panel.Header()))
	return panel, nil
}

// join left-joins t onto panel in place.
func (m *Merger) join(panel, t *models.Table) {
	src := make([]int, 0, len(t.Columns))
	dst := make([]int, 0, len(t.Columns))
	for i, col := range t.Columns {
		if panel.HasColumn(col) {
			m.logger.Warn("[merger] %s: column %q already in panel → skipping it", t.Name, col)
			continue
		}
		src = append(src, i)
		dst = append(dst, panel.AddColumn(col))
	}
	if len(src) == 0 {
		return
	}

	index := make(map[models.Key]*models.Observation, len(t.Rows))
	for _, row := range t.Rows {
		k := joinKey(t.Regional, row)
		if _, dup := index[k]; !dup {
			index[k] = row
		}
	}

	matched := 0
	for _, row := range panel.Rows {
		other, ok := index[joinKey(t.Regional, row)]
		if !ok {
			continue
		}
		matched++
		for j := range src {
			row.Values[dst[j]] = other.Values[src[j]]
		}
	}
	m.logger.Debug("[merger] %s: matched %d/%d panel rows", t.Name, matched, panel.Len())
}

func joinKey(regional bool, row *models.Observation) models.Key {
	if !regional {
		return models.Key{Month: models.MonthNumber(row.Month)}
	}
	return models.KeyOf(row)
}
