// Package oxcgrt downloads the Oxford COVID-19 Government Response Tracker
// stringency index and averages it per month.
package oxcgrt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"hotel-panel/models"
	"hotel-panel/sources"
	"hotel-panel/sources/owid"
	"hotel-panel/utils"
)

// StringencyColumns are the accepted index columns, in priority order.
var StringencyColumns = []string{
	"StringencyIndex",
	"StringencyIndex_Average",
	"StringencyIndex_ForDisplay",
	"StringencyIndex_Average_ForDisplay",
}

// Options configures the loader.
type Options struct {
	URL    string
	OWID   owid.Options
	Logger *utils.Logger
}

// Loader produces the policy_stringency table. When the tracker cannot be
// read it falls back to the OWID mirror of the same index.
type Loader struct {
	fetcher sources.Fetcher
	opts    Options
}

// New creates a Loader.
func New(fetcher sources.Fetcher, opts Options) *Loader {
	return &Loader{fetcher: fetcher, opts: opts}
}

func (l *Loader) Name() string      { return "stringency" }
func (l *Loader) Outputs() []string { return []string{models.TableStringency} }

func (l *Loader) Load(ctx context.Context) ([]*models.Table, error) {
	t, err := l.loadTracker(ctx)
	if err == nil && t.Len() > 0 {
		return []*models.Table{t}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		l.opts.Logger.Warn("[oxcgrt] Tracker failed, trying OWID mirror: %v", err)
	} else {
		l.opts.Logger.Warn("[oxcgrt] Tracker returned no EU rows, trying OWID mirror")
	}

	body, err := owid.Fetch(ctx, l.fetcher, l.opts.OWID)
	if err != nil {
		return nil, fmt.Errorf("oxcgrt: %w", err)
	}
	t, err = owid.ParseStringency(bytes.NewReader(body), l.opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("oxcgrt: %w", err)
	}
	return []*models.Table{t}, nil
}

func (l *Loader) loadTracker(ctx context.Context) (*models.Table, error) {
	body, err := l.fetcher.Fetch(ctx, l.opts.URL)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(body), l.opts.Logger)
}

// Parse reads the national tracker CSV. Dates are YYYYMMDD integers, left
// padded with zeros when shorter.
func Parse(r io.Reader, logger *utils.Logger) (*models.Table, error) {
	s, err := sources.NewCSVStream(r)
	if err != nil {
		return nil, fmt.Errorf("oxcgrt: %w", err)
	}
	code, date := s.Index("CountryCode"), s.Index("Date")
	idx := s.Index(StringencyColumns...)
	if code < 0 || date < 0 {
		return nil, &models.MissingColumnError{
			Table: models.TableStringency, Column: "CountryCode,Date", Available: s.Columns(),
		}
	}
	if idx < 0 {
		return nil, &models.MissingColumnError{
			Table: models.TableStringency, Column: models.PolicyStringency,
			Candidates: StringencyColumns, Available: s.Columns(),
		}
	}
	logger.Debug("[oxcgrt] Using stringency column %s", s.Columns()[idx])

	filter := sources.NewRegionFilter()
	agg := sources.NewAggregator(sources.Mean, models.PolicyStringency)

	err = s.Each(func(rec []string) {
		day, ok := models.ParseMonth(padDate(sources.Field(rec, date)))
		if !ok {
			return
		}
		v, ok := models.ParseValue(sources.Field(rec, idx))
		if !ok {
			return
		}
		region, ok := filter.EU(sources.Field(rec, code))
		if !ok {
			return
		}
		agg.Observe(region, day, 0, v)
	})
	if err != nil {
		return nil, fmt.Errorf("oxcgrt: %w", err)
	}

	filter.Report(logger, "oxcgrt")
	return agg.Table(models.TableStringency, true), nil
}

// padDate zero-fills a YYYYMMDD value that lost leading zeros, and drops a
// trailing ".0" left by float exports.
func padDate(s string) string {
	s = strings.TrimSuffix(s, ".0")
	if len(s) > 0 && len(s) < 8 {
		s = strings.Repeat("0", 8-len(s)) + s
	}
	return s
}
