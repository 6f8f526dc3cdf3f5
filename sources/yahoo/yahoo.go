// Package yahoo downloads monthly EUR exchange rates from the Yahoo Finance
// chart API.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"hotel-panel/models"
	"hotel-panel/sources"
	"hotel-panel/utils"
)

// Symbol maps a Yahoo ticker to a value column.
type Symbol struct {
	Ticker string
	Column string
}

// Symbols are the exchange rates in the fx_rates table.
var Symbols = []Symbol{
	{Ticker: "EURUSD=X", Column: models.EURUSD},
	{Ticker: "EURGBP=X", Column: models.EURGBP},
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Point is one monthly close.
type Point struct {
	Month time.Time
	Close float64
}

// Options configures the loader.
type Options struct {
	BaseURL string
	Start   time.Time
	End     time.Time
	Logger  *utils.Logger
}

// Loader produces the month-only fx_rates table.
type Loader struct {
	fetcher sources.Fetcher
	opts    Options
}

// New creates a Loader. Pass a sources.FallbackFetcher to retry blocked
// requests in a browser.
func New(fetcher sources.Fetcher, opts Options) *Loader {
	return &Loader{fetcher: fetcher, opts: opts}
}

func (l *Loader) Name() string      { return "fxrates" }
func (l *Loader) Outputs() []string { return []string{models.TableFX} }

func (l *Loader) Load(ctx context.Context) ([]*models.Table, error) {
	columns := make([]string, len(Symbols))
	for i, s := range Symbols {
		columns[i] = s.Column
	}
	t := models.NewTable(models.TableFX, false, columns...)
	rows := make(map[int]*models.Observation)

	var errs []error
	for col, sym := range Symbols {
		points, err := l.ticker(ctx, sym.Ticker)
		if err != nil {
			l.opts.Logger.Warn("[yahoo] %v → %s stays empty", err, sym.Column)
			errs = append(errs, err)
			continue
		}
		l.opts.Logger.Debug("[yahoo] %s: %d monthly closes", sym.Ticker, len(points))

		for _, p := range points {
			if !l.inWindow(p.Month) {
				continue
			}
			k := models.MonthNumber(p.Month)
			row, ok := rows[k]
			if !ok {
				row = t.Append("", p.Month)
				rows[k] = row
			}
			row.Values[col] = models.Float(p.Close)
		}
	}

	if len(errs) == len(Symbols) {
		return nil, errors.Join(errs...)
	}

	t.Sort()
	return []*models.Table{t}, nil
}

func (l *Loader) ticker(ctx context.Context, ticker string) ([]Point, error) {
	body, err := l.fetcher.Fetch(ctx, ChartURL(l.opts.BaseURL, ticker, l.opts.Start, l.opts.End))
	if err != nil {
		return nil, fmt.Errorf("yahoo: %s: %w", ticker, err)
	}
	points, err := ParseChart(body)
	if err != nil {
		return nil, fmt.Errorf("yahoo: %s: %w", ticker, err)
	}
	return points, nil
}

func (l *Loader) inWindow(month time.Time) bool {
	if !l.opts.Start.IsZero() && month.Before(models.MonthStart(l.opts.Start)) {
		return false
	}
	return l.opts.End.IsZero() || !month.After(l.opts.End)
}

// ChartURL builds the monthly chart request for ticker.
func ChartURL(baseURL, ticker string, start, end time.Time) string {
	q := url.Values{}
	q.Set("interval", "1mo")
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(baseURL, "/"), url.PathEscape(ticker), q.Encode())
}

// ParseChart decodes a chart response into monthly closes. Timestamps are
// shifted by the exchange offset before taking the month; null closes are
// skipped; a repeated month keeps its first close.
func ParseChart(body []byte) ([]Point, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if e := resp.Chart.Error; e != nil {
		return nil, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart: empty result")
	}

	res := resp.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart: no quotes for %s", res.Meta.Symbol)
	}
	closes := res.Indicators.Quote[0].Close

	seen := make(map[int]struct{}, len(res.Timestamp))
	points := make([]Point, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		month := models.MonthStart(time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		k := models.MonthNumber(month)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		points = append(points, Point{Month: month, Close: *closes[i]})
	}
	return points, nil
}
