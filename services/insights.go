package services

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"hotel-panel/models"
	"hotel-panel/utils"
)

// SummaryColumns are reported when present in the panel.
var SummaryColumns = []string{
	models.NightsSpent, models.GDP, models.UnemploymentRate, models.TurnoverIndex,
	models.HICPIndex, models.CovidCases, models.EURUSD, models.EURGBP,
	models.PolicyStringency, models.MobilityRetail, models.MobilityWork,
}

// InsightOptions selects the window and target of the report.
type InsightOptions struct {
	FromYear int
	ToYear   int
	Target   string
}

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(panel *models.Table, opts InsightOptions) *models.InsightReport {
	report := &models.InsightReport{Panel: panel.Name}
	for _, c := range SummaryColumns {
		if panel.HasColumn(c) {
			report.Columns = append(report.Columns, c)
		}
	}

	if panel.Len() == 0 {
		return report
	}

	report.TotalRows = panel.Len()
	report.Countries = len(panel.Regions())
	report.FirstMonth, report.LastMonth = panel.Rows[0].Month, panel.Rows[0].Month
	for _, row := range panel.Rows {
		if row.Month.Before(report.FirstMonth) {
			report.FirstMonth = row.Month
		}
		if row.Month.After(report.LastMonth) {
			report.LastMonth = row.Month
		}
	}

	report.Completeness = completeness(panel, report.Columns)
	report.Correlation = correlation(panel, report.Columns, opts.FromYear, opts.ToYear)
	if opts.Target != "" && panel.HasColumn(opts.Target) {
		report.Baseline = seasonalNaive(panel, opts.Target, 12)
	}
	s.logger.Debug("[insights] %s: %d rows, %d columns summarized", panel.Name, report.TotalRows, len(report.Columns))
	return report
}

// completeness returns the non-null share of each column per year.
func completeness(panel *models.Table, columns []string) []models.YearCompleteness {
	type counts struct {
		rows    int
		nonNull []int
	}
	byYear := make(map[int]*counts)
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = panel.ColumnIndex(c)
	}

	for _, row := range panel.Rows {
		y := row.Month.Year()
		c, ok := byYear[y]
		if !ok {
			c = &counts{nonNull: make([]int, len(columns))}
			byYear[y] = c
		}
		c.rows++
		for i, j := range idx {
			if row.Values[j].Valid {
				c.nonNull[i]++
			}
		}
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]models.YearCompleteness, 0, len(years))
	for _, y := range years {
		c := byYear[y]
		share := make(map[string]float64, len(columns))
		for i, col := range columns {
			share[col] = float64(c.nonNull[i]) / float64(c.rows)
		}
		out = append(out, models.YearCompleteness{Year: y, Share: share})
	}
	return out
}

// correlation computes Pearson correlations over rows in [from, to] where
// both columns are non-null.
func correlation(panel *models.Table, columns []string, from, to int) *models.CorrelationMatrix {
	m := &models.CorrelationMatrix{FromYear: from, ToYear: to, Columns: columns}
	m.Values = make([][]float64, len(columns))
	for i := range m.Values {
		m.Values[i] = make([]float64, len(columns))
	}

	var rows []*models.Observation
	for _, row := range panel.Rows {
		y := row.Month.Year()
		if (from == 0 || y >= from) && (to == 0 || y <= to) {
			rows = append(rows, row)
		}
	}

	for i, a := range columns {
		ai := panel.ColumnIndex(a)
		for j := i; j < len(columns); j++ {
			bi := panel.ColumnIndex(columns[j])
			var xs, ys []float64
			for _, row := range rows {
				x, y := row.Values[ai], row.Values[bi]
				if x.Valid && y.Valid {
					xs = append(xs, x.Float64)
					ys = append(ys, y.Float64)
				}
			}
			r := math.NaN()
			if len(xs) >= 2 {
				r = stat.Correlation(xs, ys, nil)
			}
			m.Values[i][j], m.Values[j][i] = r, r
		}
	}
	return m
}

// seasonalNaive scores the forecast "same month last season" for target.
func seasonalNaive(panel *models.Table, target string, season int) *models.BaselineScore {
	col := panel.ColumnIndex(target)
	values := make(map[models.Key]float64, panel.Len())
	for _, row := range panel.Rows {
		if v := row.Values[col]; v.Valid {
			values[models.KeyOf(row)] = v.Float64
		}
	}

	var actual, predicted []float64
	for _, row := range panel.Rows {
		v := row.Values[col]
		if !v.Valid {
			continue
		}
		k := models.KeyOf(row)
		k.Month -= season
		if prev, ok := values[k]; ok {
			actual = append(actual, v.Float64)
			predicted = append(predicted, prev)
		}
	}

	score := &models.BaselineScore{
		Model:  fmt.Sprintf("seasonal naive (lag %d)", season),
		Target: target,
		N:      len(actual),
	}
	score.RMSE = RMSE(actual, predicted)
	score.MAE = MAE(actual, predicted)
	score.MAPE = MAPE(actual, predicted, MAPEEpsilon)
	return score
}

// Print writes the report to stdout.
func (s *InsightService) Print(r *models.InsightReport) {
	s.Fprint(os.Stdout, r)
}

func (s *InsightService) Fprint(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 HOTEL PANEL INSIGHTS — %s\033[0m\n", r.Panel)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Rows      : \033[1m%d\033[0m\n", r.TotalRows)
	fmt.Fprintf(w, "  Countries : \033[1m%d\033[0m\n", r.Countries)
	if r.TotalRows > 0 {
		fmt.Fprintf(w, "  Coverage  : \033[1m%s → %s\033[0m\n",
			r.FirstMonth.Format(models.DateLayout), r.LastMonth.Format(models.DateLayout))
	}
	fmt.Fprintln(w)

	// Completeness
	fmt.Fprintf(w, "\033[1;33m  Non-null share by year\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Completeness) == 0 {
		fmt.Fprintf(w, "  No data\n")
	} else {
		fmt.Fprintf(w, "  %-20s", "")
		for _, y := range r.Completeness {
			fmt.Fprintf(w, " %6d", y.Year)
		}
		fmt.Fprintln(w)
		for _, col := range r.Columns {
			fmt.Fprintf(w, "  %-20s", truncate(col, 20))
			for _, y := range r.Completeness {
				fmt.Fprintf(w, " %6.2f", y.Share[col])
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)

	// Correlation
	if c := r.Correlation; c != nil && len(c.Columns) > 1 {
		fmt.Fprintf(w, "\033[1;33m  Correlation matrix (%d–%d)\033[0m\n", c.FromYear, c.ToYear)
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %-20s", "")
		for i := range c.Columns {
			fmt.Fprintf(w, " %6s", fmt.Sprintf("[%d]", i+1))
		}
		fmt.Fprintln(w)
		for i, col := range c.Columns {
			fmt.Fprintf(w, "  %-20s", fmt.Sprintf("[%d] %s", i+1, truncate(col, 15)))
			for j := range c.Columns {
				if math.IsNaN(c.Values[i][j]) {
					fmt.Fprintf(w, " %6s", "—")
				} else {
					fmt.Fprintf(w, " %6.2f", c.Values[i][j])
				}
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	// Baseline
	if b := r.Baseline; b != nil {
		fmt.Fprintf(w, "\033[1;33m  Baseline: %s on %s\033[0m\n", b.Model, b.Target)
		fmt.Fprintf(w, "  %s\n", thin)
		if b.N == 0 {
			fmt.Fprintf(w, "  Not enough history\n")
		} else {
			fmt.Fprintf(w, "  Pairs : \033[1m%d\033[0m\n", b.N)
			fmt.Fprintf(w, "  RMSE  : \033[1;32m%.2f\033[0m\n", b.RMSE)
			fmt.Fprintf(w, "  MAE   : \033[1;32m%.2f\033[0m\n", b.MAE)
			fmt.Fprintf(w, "  MAPE  : \033[1;32m%.2f%%\033[0m\n", b.MAPE)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
