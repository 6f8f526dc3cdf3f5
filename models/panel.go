package models

import (
	"database/sql"
	"sort"
	"time"
)

// Column names shared by loaders, the merger and the sinks.
const (
	ColRegion = "region"
	ColMonth  = "month"
	ColYear   = "year"

	NightsSpent      = "nights_spent"
	GDP              = "gdp"
	UnemploymentRate = "unemployment_rate"
	TurnoverIndex    = "turnover_index"
	HICPIndex        = "hicp_index"
	CovidCases       = "covid_cases"
	PolicyStringency = "policy_stringency"
	MobilityRetail   = "mobility_retail"
	MobilityWork     = "mobility_work"
	EURUSD           = "eurusd"
	EURGBP           = "eurgbp"
)

// DateLayout is the on-disk representation of a month.
const DateLayout = "2006-01-02"

// Observation is one (region, month) row. Values are aligned with the owning
// table's Columns. Region is empty for month-only tables.
type Observation struct {
	Region string
	Month  time.Time
	Values []sql.NullFloat64
}

// Key identifies an observation. Month is a running month number so that
// lags are plain integer arithmetic.
type Key struct {
	Region string
	Month  int
}

// Table is a long-format panel: one row per (region, month) and an ordered
// set of nullable value columns.
type Table struct {
	Name     string
	Regional bool
	Columns  []string
	Rows     []*Observation
}

// NewTable creates an empty table with the given value columns.
func NewTable(name string, regional bool, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Regional: regional, Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a value column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is one of the value columns.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// AddColumn appends a null-filled value column and returns its index.
// Adding an existing column returns the existing index.
func (t *Table) AddColumn(name string) int {
	if idx := t.ColumnIndex(name); idx >= 0 {
		return idx
	}
	t.Columns = append(t.Columns, name)
	for _, row := range t.Rows {
		row.Values = append(row.Values, sql.NullFloat64{})
	}
	return len(t.Columns) - 1
}

// Append adds a row. Missing trailing values are null.
func (t *Table) Append(region string, month time.Time, values ...sql.NullFloat64) *Observation {
	row := &Observation{
		Region: region,
		Month:  MonthStart(month),
		Values: make([]sql.NullFloat64, len(t.Columns)),
	}
	copy(row.Values, values)
	t.Rows = append(t.Rows, row)
	return row
}

// Value returns the named column of row, or null when the column is absent.
func (t *Table) Value(row *Observation, column string) sql.NullFloat64 {
	idx := t.ColumnIndex(column)
	if idx < 0 || idx >= len(row.Values) {
		return sql.NullFloat64{}
	}
	return row.Values[idx]
}

// KeyOf returns the natural key of row.
func KeyOf(row *Observation) Key {
	return Key{Region: row.Region, Month: MonthNumber(row.Month)}
}

// Dedupe drops rows whose (region, month) key was already seen, keeping the
// first. It returns the number of dropped rows.
func (t *Table) Dedupe() int {
	seen := make(map[Key]struct{}, len(t.Rows))
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		k := KeyOf(row)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, row)
	}
	dropped := len(t.Rows) - len(kept)
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
	return dropped
}

// Sort orders rows by (region, month). The sort is stable.
func (t *Table) Sort() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, b := t.Rows[i], t.Rows[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		return a.Month.Before(b.Month)
	})
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(*Observation) bool) {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		if keep(row) {
			kept = append(kept, row)
		}
	}
	for i := len(kept); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = kept
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := NewTable(t.Name, t.Regional, t.Columns...)
	c.Rows = make([]*Observation, len(t.Rows))
	for i, row := range t.Rows {
		vals := make([]sql.NullFloat64, len(row.Values))
		copy(vals, row.Values)
		c.Rows[i] = &Observation{Region: row.Region, Month: row.Month, Values: vals}
	}
	return c
}

// Regions returns the distinct regions in ascending order.
func (t *Table) Regions() []string {
	set := make(map[string]struct{})
	for _, row := range t.Rows {
		set[row.Region] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// NullCount returns how many rows have a null in column. An absent column
// counts every row as null.
func (t *Table) NullCount(column string) int {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return len(t.Rows)
	}
	n := 0
	for _, row := range t.Rows {
		if !row.Values[idx].Valid {
			n++
		}
	}
	return n
}

// Header returns the CSV header: region (regional tables only), month, then
// the value columns.
func (t *Table) Header() []string {
	h := make([]string, 0, len(t.Columns)+2)
	if t.Regional {
		h = append(h, ColRegion)
	}
	h = append(h, ColMonth)
	return append(h, t.Columns...)
}

// GroupByRegion returns row index runs per region. Rows must be sorted.
func (t *Table) GroupByRegion() [][]int {
	var groups [][]int
	for i, row := range t.Rows {
		if i == 0 || row.Region != t.Rows[i-1].Region {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], i)
	}
	return groups
}

// MonthStart normalizes t to midnight UTC on the first day of its month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthNumber maps a month to a running integer (year*12 + month-1).
func MonthNumber(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// Float wraps v as a valid nullable value.
func Float(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Null is the missing value.
var Null = sql.NullFloat64{}
