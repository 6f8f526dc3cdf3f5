package services

import (
	"sort"

	"hotel-panel/models"
)

// NonMonotonicRegions returns, sorted, the regions whose months are not
// strictly increasing in row order.
func NonMonotonicRegions(t *models.Table) []string {
	last := make(map[string]int)
	bad := make(map[string]struct{})
	for _, row := range t.Rows {
		m := models.MonthNumber(row.Month)
		if prev, ok := last[row.Region]; ok && m <= prev {
			bad[row.Region] = struct{}{}
		}
		last[row.Region] = m
	}

	out := make([]string, 0, len(bad))
	for r := range bad {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
