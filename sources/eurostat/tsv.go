package eurostat

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"hotel-panel/models"
	"hotel-panel/regions"
)

const geoDimension = "geo"

// ParseTSV melts a Eurostat SDMX TSV export into a long table with a single
// value column. The first header cell holds the comma-separated dimension
// names followed by "\TIME_PERIOD"; the remaining cells are periods. Rows
// failing filters, rows outside the EU and null observations are dropped.
func ParseTSV(r io.Reader, table, column string, filters map[string][]string) (*models.Table, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("eurostat: read header: %w", err)
		}
		return nil, fmt.Errorf("eurostat: %s: empty response", table)
	}

	header := strings.Split(strings.TrimPrefix(sc.Text(), "\ufeff"), "\t")
	dims := dimensions(header[0])

	geo := -1
	for i, d := range dims {
		if d == geoDimension {
			geo = i
		}
	}
	if geo < 0 {
		return nil, &models.MissingColumnError{
			Table: table, Column: models.ColRegion, Candidates: []string{geoDimension}, Available: dims,
		}
	}

	periods := make([]time.Time, len(header))
	valid := make([]bool, len(header))
	for i := 1; i < len(header); i++ {
		periods[i], valid[i] = models.ParseMonth(header[i])
	}

	allowed := compileFilters(dims, filters)

	t := models.NewTable(table, true, column)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, "\t")
		keys := strings.Split(cells[0], ",")
		if len(keys) != len(dims) || !allowed(keys) {
			continue
		}

		region := regions.FromEurostat(keys[geo])
		if !regions.IsEU(region) {
			continue
		}

		for i := 1; i < len(cells) && i < len(header); i++ {
			if !valid[i] {
				continue
			}
			v, ok := ParseObservation(cells[i])
			if !ok {
				continue
			}
			t.Append(region, periods[i], models.Float(v))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("eurostat: read %s: %w", table, err)
	}
	return t, nil
}

// ParseObservation parses a TSV cell such as "1234.5", "1234.5 p" or ": c".
// Flags after the number are dropped; ":" is null.
func ParseObservation(cell string) (float64, bool) {
	fields := strings.Fields(cell)
	if len(fields) == 0 {
		return 0, false
	}
	return models.ParseValue(strings.TrimRight(fields[0], "abcdefghijklmnopqrstuvwxyz"))
}

// dimensions flattens "freq,unit,geo\TIME_PERIOD" into its dimension names.
func dimensions(cell string) []string {
	if i := strings.Index(cell, `\`); i >= 0 {
		cell = cell[:i]
	}
	parts := strings.Split(cell, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts
}

func compileFilters(dims []string, filters map[string][]string) func([]string) bool {
	type rule struct {
		index int
		keep  map[string]struct{}
	}
	var rules []rule
	for dim, values := range filters {
		for i, d := range dims {
			if d != strings.ToLower(dim) {
				continue
			}
			keep := make(map[string]struct{}, len(values))
			for _, v := range values {
				keep[v] = struct{}{}
			}
			rules = append(rules, rule{index: i, keep: keep})
		}
	}
	return func(keys []string) bool {
		for _, r := range rules {
			if _, ok := r.keep[strings.TrimSpace(keys[r.index])]; !ok {
				return false
			}
		}
		return true
	}
}
