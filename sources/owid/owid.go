// Package owid reads the Our World in Data COVID-19 dataset: monthly cases per
// 100k population and, as a stringency fallback, the mirrored OxCGRT index.
package owid

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"hotel-panel/models"
	"hotel-panel/sources"
	"hotel-panel/utils"
)

// Options configures where the dataset is read from.
type Options struct {
	URLs       []string
	BackupFile string
	Logger     *utils.Logger
}

// Fetch downloads the dataset from the first working mirror, falling back to
// the local backup file.
func Fetch(ctx context.Context, fetcher sources.Fetcher, opts Options) ([]byte, error) {
	body, url, err := sources.FetchFirst(ctx, fetcher, opts.URLs, opts.Logger)
	if err == nil {
		opts.Logger.Info("[owid] Loaded %s (%d bytes)", url, len(body))
		return body, nil
	}
	if ctx.Err() != nil || opts.BackupFile == "" {
		return nil, fmt.Errorf("owid: all mirrors failed: %w", err)
	}

	backup, ferr := os.ReadFile(opts.BackupFile)
	if ferr != nil {
		return nil, fmt.Errorf("owid: all mirrors failed (%v) and no backup: %w", err, ferr)
	}
	opts.Logger.Warn("[owid] Mirrors failed, using local backup %s", opts.BackupFile)
	return backup, nil
}

// CovidLoader produces the covid table.
type CovidLoader struct {
	fetcher sources.Fetcher
	opts    Options
}

// NewCovidLoader creates a CovidLoader.
func NewCovidLoader(fetcher sources.Fetcher, opts Options) *CovidLoader {
	return &CovidLoader{fetcher: fetcher, opts: opts}
}

func (l *CovidLoader) Name() string      { return "covid" }
func (l *CovidLoader) Outputs() []string { return []string{models.TableCovid} }

func (l *CovidLoader) Load(ctx context.Context) ([]*models.Table, error) {
	body, err := Fetch(ctx, l.fetcher, l.opts)
	if err != nil {
		return nil, err
	}
	t, err := ParseCovid(bytes.NewReader(body), l.opts.Logger)
	if err != nil {
		return nil, err
	}
	return []*models.Table{t}, nil
}

// ParseCovid aggregates daily new cases into monthly cases per 100k
// population. Only ISO-3 country rows are read (OWID aggregates such as
// OWID_WRL are skipped); rows without a population are dropped. A month in
// which no day reported new cases is null.
func ParseCovid(r io.Reader, logger *utils.Logger) (*models.Table, error) {
	s, err := sources.NewCSVStream(r)
	if err != nil {
		return nil, fmt.Errorf("owid: %w", err)
	}
	iso, date := s.Index("iso_code"), s.Index("date")
	cases, pop := s.Index("new_cases"), s.Index("population")
	if iso < 0 || date < 0 || cases < 0 || pop < 0 {
		return nil, &models.MissingColumnError{
			Table: models.TableCovid, Column: "iso_code,date,new_cases,population", Available: s.Columns(),
		}
	}

	filter := sources.NewRegionFilter()
	agg := sources.NewAggregator(sources.Sum, models.CovidCases)

	err = s.Each(func(rec []string) {
		code := sources.Field(rec, iso)
		if len(code) != 3 {
			return
		}
		day, ok := models.ParseMonth(sources.Field(rec, date))
		if !ok {
			return
		}
		population, ok := models.ParseValue(sources.Field(rec, pop))
		if !ok || population <= 0 {
			return
		}
		region, ok := filter.EU(code)
		if !ok {
			return
		}

		n, ok := models.ParseValue(sources.Field(rec, cases))
		if !ok {
			agg.Touch(region, day)
			return
		}
		agg.Observe(region, day, 0, n/population*1e5)
	})
	if err != nil {
		return nil, fmt.Errorf("owid: %w", err)
	}

	filter.Report(logger, "owid")
	return agg.Table(models.TableCovid, true), nil
}

// ParseStringency averages the daily stringency_index column per month.
func ParseStringency(r io.Reader, logger *utils.Logger) (*models.Table, error) {
	s, err := sources.NewCSVStream(r)
	if err != nil {
		return nil, fmt.Errorf("owid: %w", err)
	}
	iso, date, idx := s.Index("iso_code"), s.Index("date"), s.Index("stringency_index")
	if iso < 0 || date < 0 || idx < 0 {
		return nil, &models.MissingColumnError{
			Table: models.TableStringency, Column: "stringency_index", Available: s.Columns(),
		}
	}

	filter := sources.NewRegionFilter()
	agg := sources.NewAggregator(sources.Mean, models.PolicyStringency)

	err = s.Each(func(rec []string) {
		code := sources.Field(rec, iso)
		if len(code) != 3 {
			return
		}
		day, ok := models.ParseMonth(sources.Field(rec, date))
		if !ok {
			return
		}
		v, ok := models.ParseValue(sources.Field(rec, idx))
		if !ok {
			return
		}
		region, ok := filter.EU(code)
		if !ok {
			return
		}
		agg.Observe(region, day, 0, v)
	})
	if err != nil {
		return nil, fmt.Errorf("owid: %w", err)
	}

	filter.Report(logger, "owid")
	return agg.Table(models.TableStringency, true), nil
}
