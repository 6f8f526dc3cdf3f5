package services

import (
	"database/sql"
	"fmt"
	"sort"

	"hotel-panel/models"
	"hotel-panel/utils"
)

// FillPolicy selects how a covariate's gaps are closed within a region.
type FillPolicy string

const (
	FillNone            FillPolicy = "none"
	FillForward         FillPolicy = "ffill"
	FillBackward        FillPolicy = "bfill"
	FillForwardBackward FillPolicy = "ffill_bfill"
	FillZero            FillPolicy = "zero"
	FillInterpolate     FillPolicy = "interpolate"
)

// DefaultFillPolicy closes gaps in the pandemic-era covariates only.
var DefaultFillPolicy = map[string]FillPolicy{
	models.PolicyStringency: FillForwardBackward,
	models.MobilityRetail:   FillForwardBackward,
	models.MobilityWork:     FillForwardBackward,
}

// CleanOptions configures a Cleaner.
type CleanOptions struct {
	StartYear int
	EndYear   int
	Target    string
	Fill      map[string]FillPolicy
}

// Cleaner reduces a merged panel to the analysis window.
type Cleaner struct {
	opts   CleanOptions
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given options and logger.
func NewCleaner(opts CleanOptions, logger *utils.Logger) *Cleaner {
	if opts.Target == "" {
		opts.Target = models.NightsSpent
	}
	if opts.Fill == nil {
		opts.Fill = DefaultFillPolicy
	}
	return &Cleaner{opts: opts, logger: logger}
}

// Clean returns a new panel: a year column is derived, rows outside
// [StartYear, EndYear] or with a null target are dropped, rows are sorted by
// (region, month) and the configured covariates are filled per region.
// The target column is never filled.
func (c *Cleaner) Clean(panel *models.Table) (*models.Table, error) {
	target := panel.ColumnIndex(c.opts.Target)
	if target < 0 {
		return nil, &models.MissingColumnError{
			Table: panel.Name, Column: c.opts.Target, Available: panel.Columns,
		}
	}

	out := panel.Clone()
	out.Name = PanelName + "_clean"
	in := out.Len()

	year := out.AddColumn(models.ColYear)
	for _, row := range out.Rows {
		row.Values[year] = models.Float(float64(row.Month.Year()))
	}

	out.Filter(func(row *models.Observation) bool {
		y := row.Month.Year()
		return y >= c.opts.StartYear && y <= c.opts.EndYear
	})
	inRange := out.Len()

	out.Filter(func(row *models.Observation) bool {
		return row.Values[target].Valid
	})
	out.Sort()

	groups := out.GroupByRegion()
	for _, col := range c.fillColumns(out) {
		policy := c.opts.Fill[col]
		idx := out.ColumnIndex(col)
		before := out.NullCount(col)
		for _, g := range groups {
			fillGroup(out, g, idx, policy)
		}
		if after := out.NullCount(col); after != before {
			c.logger.Debug("[cleaner] %s (%s): filled %d gaps", col, policy, before-after)
		}
	}

	c.logger.Info("[cleaner] Cleaned %d → %d rows (%d outside %d–%d, %d without %s)",
		in, out.Len(), in-inRange, c.opts.StartYear, c.opts.EndYear, inRange-out.Len(), c.opts.Target)
	return out, nil
}

// fillColumns returns the present columns that have a fill policy, in panel
// order. The target and year are never filled.
func (c *Cleaner) fillColumns(t *models.Table) []string {
	var cols []string
	for _, col := range t.Columns {
		if col == c.opts.Target || col == models.ColYear {
			continue
		}
		if p, ok := c.opts.Fill[col]; ok && p != FillNone {
			cols = append(cols, col)
		}
	}
	return cols
}

func fillGroup(t *models.Table, rows []int, col int, policy FillPolicy) {
	switch policy {
	case FillForward:
		forwardFill(t, rows, col)
	case FillBackward:
		backwardFill(t, rows, col)
	case FillForwardBackward:
		forwardFill(t, rows, col)
		backwardFill(t, rows, col)
	case FillZero:
		for _, i := range rows {
			if !t.Rows[i].Values[col].Valid {
				t.Rows[i].Values[col] = models.Float(0)
			}
		}
	case FillInterpolate:
		interpolate(t, rows, col)
	}
}

func forwardFill(t *models.Table, rows []int, col int) {
	var last sql.NullFloat64
	for _, i := range rows {
		v := &t.Rows[i].Values[col]
		if v.Valid {
			last = *v
		} else if last.Valid {
			*v = last
		}
	}
}

func backwardFill(t *models.Table, rows []int, col int) {
	var next sql.NullFloat64
	for k := len(rows) - 1; k >= 0; k-- {
		v := &t.Rows[rows[k]].Values[col]
		if v.Valid {
			next = *v
		} else if next.Valid {
			*v = next
		}
	}
}

// interpolate fills interior gaps linearly in calendar months. Leading and
// trailing gaps stay null.
func interpolate(t *models.Table, rows []int, col int) {
	prev := -1
	for k, i := range rows {
		if !t.Rows[i].Values[col].Valid {
			continue
		}
		if prev >= 0 && k-prev > 1 {
			a, b := t.Rows[rows[prev]], t.Rows[i]
			x0, x1 := float64(models.MonthNumber(a.Month)), float64(models.MonthNumber(b.Month))
			y0, y1 := a.Values[col].Float64, b.Values[col].Float64
			for _, j := range rows[prev+1 : k] {
				x := float64(models.MonthNumber(t.Rows[j].Month))
				t.Rows[j].Values[col] = models.Float(y0 + (y1-y0)*(x-x0)/(x1-x0))
			}
		}
		prev = k
	}
}

// ParseFillPolicy converts configuration values into fill policies.
func ParseFillPolicy(raw map[string]string) (map[string]FillPolicy, error) {
	out := make(map[string]FillPolicy, len(raw))
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, col := range keys {
		p := FillPolicy(raw[col])
		switch p {
		case FillNone, FillForward, FillBackward, FillForwardBackward, FillZero, FillInterpolate:
			out[col] = p
		default:
			return nil, fmt.Errorf("cleaner: unknown fill policy %q for %s", raw[col], col)
		}
	}
	return out, nil
}
