package sources

import (
	"strings"

	"hotel-panel/regions"
	"hotel-panel/utils"
)

// RegionFilter converts source country codes to EU alpha-2 codes and
// remembers the codes that have no ISO-3166 mapping.
type RegionFilter struct {
	unmapped *utils.KeySet
}

// NewRegionFilter creates an empty RegionFilter.
func NewRegionFilter() *RegionFilter {
	return &RegionFilter{unmapped: utils.NewKeySet()}
}

// EU returns the alpha-2 code of an EU member. The second result is false for
// non-members and for unmapped codes.
func (f *RegionFilter) EU(code string) (string, bool) {
	iso, ok := regions.ToAlpha2(code)
	if !ok {
		f.unmapped.Add(regions.Normalize(code))
		return "", false
	}
	return iso, regions.IsEU(iso)
}

// Report logs the unmapped codes once.
func (f *RegionFilter) Report(logger *utils.Logger, source string) {
	if f.unmapped.Size() == 0 {
		return
	}
	logger.Warn("[%s] Dropped rows with unmapped country codes: %s",
		source, strings.Join(f.unmapped.Sorted(), ", "))
}
