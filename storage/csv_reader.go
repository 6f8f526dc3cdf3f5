package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"hotel-panel/models"
	"hotel-panel/regions"
	"hotel-panel/utils"
)

// DateCandidates are the accepted names of the time column, in priority order.
var DateCandidates = []string{"month", "time", "date"}

// RegionCandidates are the accepted names of the country column, in priority order.
var RegionCandidates = []string{"region", "geo", "CountryCode", "country_region_code", "iso_code", "iso3", "iso2"}

// columnAliases renames value columns written by older exports.
var columnAliases = map[string]string{
	"cases_per_100k":          models.CovidCases,
	"StringencyIndex_Average": models.PolicyStringency,
	"stringency_index":        models.PolicyStringency,
	"stringency":              models.PolicyStringency,
}

// derivedColumns are recomputed downstream and never read back as values.
var derivedColumns = map[string]struct{}{
	models.ColYear: {},
}

// CSVReader loads raw or processed CSV files into tables, detecting the date
// and region columns and converting alpha-3 country codes to alpha-2.
type CSVReader struct {
	logger *utils.Logger
}

// NewCSVReader creates a reader that reports data-quality issues to logger.
func NewCSVReader(logger *utils.Logger) *CSVReader {
	return &CSVReader{logger: logger}
}

// ReadTable reads the CSV file at path as the table called name. A file that
// does not exist returns an error matching fs.ErrNotExist. A file without a
// recognizable date column returns a *models.MissingColumnError.
func (r *CSVReader) ReadTable(path, name string) (*models.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return r.withoutRows(path, name, data, df.Err)
	}

	names := df.Names()
	dateCol := detectColumn(names, DateCandidates)
	if dateCol == "" {
		return nil, &models.MissingColumnError{
			Table: name, Column: models.ColMonth, Candidates: DateCandidates, Available: names,
		}
	}
	regionCol := detectColumn(names, RegionCandidates)

	var valueNames []string
	var valueCells [][]string
	for _, col := range names {
		if skipColumn(col, dateCol, regionCol) {
			continue
		}
		cells := df.Col(col).Records()
		if !numeric(cells) {
			r.logger.Debug("[csv] %s: ignoring non-numeric column %q", name, col)
			continue
		}
		valueNames = append(valueNames, canonical(col))
		valueCells = append(valueCells, cells)
	}

	t := models.NewTable(name, regionCol != "", valueNames...)
	dates := df.Col(dateCol).Records()
	var codes []string
	if regionCol != "" {
		codes = df.Col(regionCol).Records()
	}

	unmapped := utils.NewKeySet()
	badDates := 0
	for i, raw := range dates {
		month, ok := models.ParseMonth(raw)
		if !ok {
			badDates++
			continue
		}

		region := ""
		if codes != nil {
			iso, ok := regions.ToAlpha2(codes[i])
			if !ok {
				unmapped.Add(regions.Normalize(codes[i]))
				continue
			}
			region = iso
		}

		row := t.Append(region, month)
		for j, cells := range valueCells {
			if v, ok := models.ParseValue(cells[i]); ok {
				row.Values[j] = models.Float(v)
			}
		}
	}

	if badDates > 0 {
		r.logger.Warn("[csv] %s: dropped %d rows with unparseable %q values", name, badDates, dateCol)
	}
	if unmapped.Size() > 0 {
		r.logger.Warn("[csv] %s: dropped rows with unmapped country codes: %s",
			name, strings.Join(unmapped.Sorted(), ", "))
	}
	return t, nil
}

// withoutRows handles the inputs gota refuses to load: an empty file has no
// date column, a bare header gives an empty table. Anything else reports
// loadErr.
func (r *CSVReader) withoutRows(path, name string, data []byte, loadErr error) (*models.Table, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &models.MissingColumnError{Table: name, Column: models.ColMonth, Candidates: DateCandidates}
	}
	if err != nil {
		return nil, fmt.Errorf("csv: parse %q: %w", path, err)
	}
	if _, err := cr.Read(); err != io.EOF {
		return nil, fmt.Errorf("csv: load %q: %w", path, loadErr)
	}
	return r.emptyTable(name, header)
}

func (r *CSVReader) emptyTable(name string, header []string) (*models.Table, error) {
	dateCol := detectColumn(header, DateCandidates)
	if dateCol == "" {
		return nil, &models.MissingColumnError{
			Table: name, Column: models.ColMonth, Candidates: DateCandidates, Available: header,
		}
	}
	regionCol := detectColumn(header, RegionCandidates)

	var cols []string
	for _, col := range header {
		if skipColumn(col, dateCol, regionCol) {
			continue
		}
		cols = append(cols, canonical(col))
	}
	return models.NewTable(name, regionCol != "", cols...), nil
}

// detectColumn returns the first candidate present in names, matched
// case-insensitively, using the spelling found in names.
func detectColumn(names, candidates []string) string {
	for _, c := range candidates {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), c) {
				return n
			}
		}
	}
	return ""
}

func skipColumn(col, dateCol, regionCol string) bool {
	if col == dateCol || col == regionCol {
		return true
	}
	if detectColumn([]string{col}, DateCandidates) != "" || detectColumn([]string{col}, RegionCandidates) != "" {
		return true
	}
	_, derived := derivedColumns[strings.ToLower(col)]
	return derived
}

func canonical(col string) string {
	col = strings.TrimSpace(col)
	if alias, ok := columnAliases[col]; ok {
		return alias
	}
	return col
}

// numeric reports whether every non-null cell parses as a number.
func numeric(cells []string) bool {
	for _, c := range cells {
		if _, ok := models.ParseValue(c); ok {
			continue
		}
		switch strings.TrimSpace(c) {
		case "", "NaN", "nan", "NA", "<nil>", "null", ":":
			continue
		}
		return false
	}
	return true
}
