package sources

import (
	"time"

	"hotel-panel/models"
)

// Aggregation selects how daily observations collapse into a month.
type Aggregation int

const (
	Sum Aggregation = iota
	Mean
)

type cell struct {
	sum []float64
	n   []int
}

// Aggregator collects daily observations per (region, month) and produces a
// monthly table. A month that was seen but never observed for a column is null.
type Aggregator struct {
	agg     Aggregation
	columns []string
	cells   map[models.Key]*cell
	keys    []models.Key
	months  map[models.Key]time.Time
}

// NewAggregator creates an Aggregator for the given value columns.
func NewAggregator(agg Aggregation, columns ...string) *Aggregator {
	return &Aggregator{
		agg:     agg,
		columns: columns,
		cells:   make(map[models.Key]*cell),
		months:  make(map[models.Key]time.Time),
	}
}

// Touch registers (region, month) without an observation.
func (a *Aggregator) Touch(region string, day time.Time) {
	a.cell(region, day)
}

// Observe adds v to column col of the month containing day.
func (a *Aggregator) Observe(region string, day time.Time, col int, v float64) {
	c := a.cell(region, day)
	c.sum[col] += v
	c.n[col]++
}

func (a *Aggregator) cell(region string, day time.Time) *cell {
	month := models.MonthStart(day)
	k := models.Key{Region: region, Month: models.MonthNumber(month)}
	c, ok := a.cells[k]
	if !ok {
		c = &cell{sum: make([]float64, len(a.columns)), n: make([]int, len(a.columns))}
		a.cells[k] = c
		a.keys = append(a.keys, k)
		a.months[k] = month
	}
	return c
}

// Table returns the monthly table sorted by (region, month).
func (a *Aggregator) Table(name string, regional bool) *models.Table {
	t := models.NewTable(name, regional, a.columns...)
	for _, k := range a.keys {
		c := a.cells[k]
		row := t.Append(k.Region, a.months[k])
		for j := range a.columns {
			if c.n[j] == 0 {
				continue
			}
			v := c.sum[j]
			if a.agg == Mean {
				v /= float64(c.n[j])
			}
			row.Values[j] = models.Float(v)
		}
	}
	t.Sort()
	return t
}
