// Package regions holds the EU member allow-list and ISO-3166 code conversion.
package regions

import (
	"strings"

	"github.com/biter777/countries"
)

// EU lists the 27 member states as ISO-3166 alpha-2 codes.
var EU = []string{
	"AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "ES", "FI", "FR", "GR", "HR", "HU",
	"IE", "IT", "LT", "LU", "LV", "MT", "NL", "PL", "PT", "RO", "SE", "SI", "SK",
}

var euSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EU))
	for _, c := range EU {
		m[c] = struct{}{}
	}
	return m
}()

// eurostatAliases maps Eurostat geo codes that differ from ISO-3166.
var eurostatAliases = map[string]string{
	"EL": "GR",
	"UK": "GB",
}

// Normalize upper-cases and trims a region code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsEU reports whether an alpha-2 code is on the allow-list.
func IsEU(alpha2 string) bool {
	_, ok := euSet[Normalize(alpha2)]
	return ok
}

// FromEurostat converts a Eurostat geo code to ISO alpha-2.
func FromEurostat(geo string) string {
	g := Normalize(geo)
	if iso, ok := eurostatAliases[g]; ok {
		return iso
	}
	return g
}

// ToAlpha2 converts an alpha-2 or alpha-3 code to alpha-2. The second result
// is false when the code has no ISO-3166 mapping (e.g. OWID aggregates such
// as OWID_WRL).
func ToAlpha2(code string) (string, bool) {
	c := Normalize(code)
	switch len(c) {
	case 2:
		if iso, ok := eurostatAliases[c]; ok {
			return iso, true
		}
		if countries.ByName(c) == countries.Unknown {
			return "", false
		}
		return c, true
	case 3:
		cc := countries.ByName(c)
		if cc == countries.Unknown {
			return "", false
		}
		a2 := cc.Alpha2()
		if a2 == "" {
			return "", false
		}
		return a2, true
	default:
		return "", false
	}
}
