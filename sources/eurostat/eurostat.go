// Package eurostat downloads the tourism and macro indicators from the
// Eurostat dissemination API.
package eurostat

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"hotel-panel/models"
	"hotel-panel/sources"
	"hotel-panel/utils"
)

// Dataset is one Eurostat dataset code and the dimension values to keep.
type Dataset struct {
	Code    string
	Filters map[string][]string
}

// Indicator produces one raw table. When it lists several datasets their
// rows are concatenated in order and duplicates keep the first.
type Indicator struct {
	Table    string
	Column   string
	Base     bool
	Datasets []Dataset
}

// Indicators are downloaded in this order.
var Indicators = []Indicator{
	{
		Table: models.TableNights, Column: models.NightsSpent, Base: true,
		Datasets: []Dataset{{
			Code: "tour_occ_nim",
			Filters: map[string][]string{
				"unit": {"NR"}, "c_resid": {"TOTAL"}, "nace_r2": {"I551"},
			},
		}},
	},
	{
		Table: models.TableGDP, Column: models.GDP,
		Datasets: []Dataset{
			{
				Code: "namq_10_gdp",
				Filters: map[string][]string{
					"na_item": {"B1GQ", "B1G"},
					"unit":    {"CP_MEUR", "CLV05_MEUR", "CLV10_MEUR"},
					"s_adj":   {"NSA", "CA"},
				},
			},
			{
				Code: "nama_10_gdp",
				Filters: map[string][]string{
					"na_item": {"B1G"}, "unit": {"CLV10_MEUR"}, "s_adj": {"NSA"},
				},
			},
		},
	},
	{
		Table: models.TableUnemployment, Column: models.UnemploymentRate,
		Datasets: []Dataset{{
			Code: "une_rt_m",
			Filters: map[string][]string{
				"unit": {"PC_ACT"}, "s_adj": {"NSA"}, "age": {"TOTAL"}, "sex": {"T"},
			},
		}},
	},
	{
		Table: models.TableTurnover, Column: models.TurnoverIndex,
		Datasets: []Dataset{{
			Code: "sts_setu_m",
			Filters: map[string][]string{
				"indic_bt": {"NETTUR"}, "nace_r2": {"I", "I55", "I56"}, "s_adj": {"CA"}, "unit": {"I21"},
			},
		}},
	},
	{
		Table: models.TableHICP, Column: models.HICPIndex,
		Datasets: []Dataset{{
			Code: "prc_hicp_midx",
			Filters: map[string][]string{
				"coicop": {"CP00"}, "unit": {"I15", "I21"},
			},
		}},
	},
}

// Options configures the loader.
type Options struct {
	BaseURL        string
	Start          time.Time
	End            time.Time
	MaxConcurrency int
	RateLimitMs    int
	Logger         *utils.Logger
}

// Loader downloads every indicator into its own table.
type Loader struct {
	fetcher    sources.Fetcher
	opts       Options
	indicators []Indicator
}

// New creates a Loader for the default indicators.
func New(fetcher sources.Fetcher, opts Options) *Loader {
	return &Loader{fetcher: fetcher, opts: opts, indicators: Indicators}
}

func (l *Loader) Name() string { return "eurostat" }

func (l *Loader) Outputs() []string {
	out := make([]string, len(l.indicators))
	for i, ind := range l.indicators {
		out[i] = ind.Table
	}
	return out
}

// Load fetches the indicators through a worker pool. A failed optional
// indicator yields an empty table; a failed or empty base indicator aborts
// with sources.ErrBaseSource.
func (l *Loader) Load(ctx context.Context) ([]*models.Table, error) {
	results := make([]*models.Table, len(l.indicators))
	pool := utils.NewWorkerPool(ctx, l.opts.MaxConcurrency, l.opts.RateLimitMs)

	for i, ind := range l.indicators {
		pool.Submit(func(ctx context.Context) error {
			t, err := l.loadIndicator(ctx, ind)
			if err == nil && ind.Base && t.Len() == 0 {
				err = fmt.Errorf("no observations after filtering")
			}
			if err != nil {
				if ind.Base {
					return fmt.Errorf("%w: %s: %v", sources.ErrBaseSource, ind.Table, err)
				}
				l.opts.Logger.Error("[eurostat] %s failed: %v", ind.Table, err)
				t = models.NewTable(ind.Table, true, ind.Column)
			}
			results[i] = t
			return nil
		})
	}

	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (l *Loader) loadIndicator(ctx context.Context, ind Indicator) (*models.Table, error) {
	out := models.NewTable(ind.Table, true, ind.Column)
	var firstErr error
	loaded := 0

	for _, ds := range ind.Datasets {
		t, err := l.loadDataset(ctx, ind, ds)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			l.opts.Logger.Warn("[eurostat] %s (%s) failed: %v", ind.Table, ds.Code, err)
			continue
		}
		loaded++
		l.opts.Logger.Debug("[eurostat] %s (%s): %d rows", ind.Table, ds.Code, t.Len())
		out.Rows = append(out.Rows, t.Rows...)
	}
	if loaded == 0 {
		return nil, firstErr
	}

	if dropped := out.Dedupe(); dropped > 0 {
		l.opts.Logger.Debug("[eurostat] %s: dropped %d duplicate region-months", ind.Table, dropped)
	}
	out.Filter(l.inWindow)
	out.Sort()
	return out, nil
}

func (l *Loader) loadDataset(ctx context.Context, ind Indicator, ds Dataset) (*models.Table, error) {
	body, err := l.fetcher.Fetch(ctx, DatasetURL(l.opts.BaseURL, ds.Code))
	if err != nil {
		return nil, err
	}
	return ParseTSV(bytes.NewReader(body), ind.Table, ind.Column, ds.Filters)
}

func (l *Loader) inWindow(row *models.Observation) bool {
	if !l.opts.Start.IsZero() && row.Month.Before(models.MonthStart(l.opts.Start)) {
		return false
	}
	if !l.opts.End.IsZero() && row.Month.After(l.opts.End) {
		return false
	}
	return true
}

// DatasetURL returns the uncompressed TSV download URL of a dataset.
func DatasetURL(baseURL, code string) string {
	return fmt.Sprintf("%s/%s?format=TSV&compressed=false", strings.TrimRight(baseURL, "/"), code)
}
