package services

import (
	"database/sql"
	"fmt"

	"hotel-panel/models"
	"hotel-panel/utils"
)

// DefaultLagColumns and DefaultLagDepths are the lags added when none are configured.
var (
	DefaultLagColumns = []string{models.GDP, models.TurnoverIndex, models.CovidCases, models.UnemploymentRate}
	DefaultLagDepths  = []int{1, 2, 3}
)

// Enricher adds lagged copies of source columns.
type Enricher struct {
	columns []string
	depths  []int
	logger  *utils.Logger
}

// NewEnricher creates an Enricher. Empty columns or depths use the defaults.
func NewEnricher(columns []string, depths []int, logger *utils.Logger) *Enricher {
	if len(columns) == 0 {
		columns = DefaultLagColumns
	}
	if len(depths) == 0 {
		depths = DefaultLagDepths
	}
	return &Enricher{columns: columns, depths: depths, logger: logger}
}

// LagName returns the column holding col lagged by n months.
func LagName(col string, n int) string {
	return fmt.Sprintf("%s_lag%d", col, n)
}

// Enrich widens panel in place with <col>_lag<n> columns. A lag holds the
// value from exactly n calendar months earlier in the same region, or null
// when that month is not in the panel. Absent source columns are skipped.
func (e *Enricher) Enrich(panel *models.Table) *models.Table {
	return e.EnrichFrom(panel, panel)
}

// EnrichFrom is Enrich with the lagged values looked up in history instead
// of panel. Passing the merged panel lets the first months of an analysis
// window borrow values from before it. A column history lacks is looked up
// in panel.
func (e *Enricher) EnrichFrom(panel, history *models.Table) *models.Table {
	if history == nil {
		history = panel
	}

	added := 0
	for _, col := range e.columns {
		if panel.ColumnIndex(col) < 0 {
			e.logger.Debug("[enrich] %s not in panel → no lags", col)
			continue
		}
		values := lagSource(history, col)
		if values == nil {
			values = lagSource(panel, col)
		}

		for _, n := range e.depths {
			dst := panel.AddColumn(LagName(col, n))
			for _, row := range panel.Rows {
				k := models.KeyOf(row)
				k.Month -= n
				row.Values[dst] = values[k]
			}
			added++
		}
	}

	e.logger.Info("[enrich] Added %d lag columns to %s", added, panel.Name)
	return panel
}

// lagSource indexes column col of t by key, or returns nil when t has no
// such column.
func lagSource(t *models.Table, col string) map[models.Key]sql.NullFloat64 {
	src := t.ColumnIndex(col)
	if src < 0 {
		return nil
	}
	values := make(map[models.Key]sql.NullFloat64, t.Len())
	for _, row := range t.Rows {
		values[models.KeyOf(row)] = row.Values[src]
	}
	return values
}
