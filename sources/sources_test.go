package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-panel/models"
	"hotel-panel/utils"
)

func TestHTTPFetcherFetch(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		fmt.Fprint(w, "region,month\n")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second})
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "region,month\n", string(body))
	assert.Contains(t, ua, "Mozilla/5.0")
}

func TestHTTPFetcherStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second}).Fetch(context.Background(), srv.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestHTTPFetcherRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second, MaxRetries: 2})
	f.retry.BaseDelay = time.Millisecond

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPFetcherNoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second, MaxRetries: 3})
	f.retry.BaseDelay = time.Millisecond

	_, err := f.Fetch(context.Background(), srv.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.False(t, se.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcherCircuitOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second})
	for i := 0; i < 7; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(5), calls.Load(), "requests stop reaching the host once the breaker opens")
}

func TestHTTPFetcherOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 10000))
	}))
	defer srv.Close()

	rc, err := NewHTTPFetcher(HTTPOptions{Timeout: 5 * time.Second}).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Len(t, b, 10000)
}

// trickle writes chunks of 16 bytes, pausing gap between them.
func trickle(chunks int, gap time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < chunks; i++ {
			if i > 0 {
				select {
				case <-time.After(gap):
				case <-r.Context().Done():
					return
				}
			}
			fmt.Fprint(w, strings.Repeat("x", 16))
			flusher.Flush()
		}
	}
}

func TestHTTPFetcherSlowSteadyStream(t *testing.T) {
	srv := httptest.NewServer(trickle(10, 50*time.Millisecond))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{Timeout: 200 * time.Millisecond})

	rc, err := f.Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rc.Close()

	n, err := io.Copy(io.Discard, rc)
	require.NoError(t, err, "a transfer longer than the timeout must not be cut while data flows")
	assert.Equal(t, int64(160), n)

	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 160)
}

func TestHTTPFetcherStalledStream(t *testing.T) {
	srv := httptest.NewServer(trickle(2, 2*time.Second))
	defer srv.Close()

	rc, err := NewHTTPFetcher(HTTPOptions{Timeout: 100 * time.Millisecond}).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rc.Close()

	start := time.Now()
	_, err = io.Copy(io.Discard, rc)
	assert.ErrorIs(t, err, ErrIdleTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

type fakeFetcher struct {
	bodies map[string]string
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.calls = append(f.calls, rawURL)
	if b, ok := f.bodies[rawURL]; ok {
		return []byte(b), nil
	}
	return nil, &StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
}

func TestFetchFirst(t *testing.T) {
	f := &fakeFetcher{bodies: map[string]string{"b": "second"}}
	body, used, err := FetchFirst(context.Background(), f, []string{"a", "b", "c"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", string(body))
	assert.Equal(t, "b", used)
	assert.Equal(t, []string{"a", "b"}, f.calls)

	_, _, err = FetchFirst(context.Background(), f, []string{"x"}, nil)
	var se *StatusError
	assert.ErrorAs(t, err, &se)

	_, _, err = FetchFirst(context.Background(), f, nil, nil)
	assert.Error(t, err)
}

func TestAggregator(t *testing.T) {
	agg := NewAggregator(Mean, "a", "b")
	d := func(m time.Month, day int) time.Time { return time.Date(2021, m, day, 0, 0, 0, 0, time.UTC) }

	agg.Observe("FR", d(2, 3), 0, 2)
	agg.Observe("DE", d(1, 1), 0, 1)
	agg.Observe("DE", d(1, 20), 0, 3)
	agg.Observe("DE", d(1, 20), 1, 10)
	agg.Touch("DE", d(2, 1))

	got := agg.Table("t", true)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, "DE", got.Rows[0].Region)
	assert.Equal(t, models.Float(2), got.Rows[0].Values[0])
	assert.Equal(t, models.Float(10), got.Rows[0].Values[1])
	assert.False(t, got.Rows[1].Values[0].Valid)
	assert.Equal(t, "FR", got.Rows[2].Region)

	sum := NewAggregator(Sum, "v")
	sum.Observe("DE", d(1, 1), 0, 1)
	sum.Observe("DE", d(1, 2), 0, 3)
	assert.Equal(t, models.Float(4), sum.Table("s", true).Rows[0].Values[0])
}

func TestRegionFilter(t *testing.T) {
	f := NewRegionFilter()

	got, ok := f.EU("DEU")
	assert.True(t, ok)
	assert.Equal(t, "DE", got)

	got, ok = f.EU("el")
	assert.True(t, ok)
	assert.Equal(t, "GR", got)

	_, ok = f.EU("USA")
	assert.False(t, ok)
	_, ok = f.EU("OWID_EUR")
	assert.False(t, ok)

	assert.Equal(t, []string{"OWID_EUR"}, f.unmapped.Sorted())
}

type stubLoader struct {
	name    string
	outputs []string
	tables  []*models.Table
	err     error
	calls   int
}

func (s *stubLoader) Name() string      { return s.name }
func (s *stubLoader) Outputs() []string { return s.outputs }
func (s *stubLoader) Load(context.Context) ([]*models.Table, error) {
	s.calls++
	return s.tables, s.err
}

func covidTable(rows int) *models.Table {
	t := models.NewTable(models.TableCovid, true, models.CovidCases)
	for i := 0; i < rows; i++ {
		t.Append("DE", time.Date(2020, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC), models.Float(float64(i)))
	}
	return t
}

func TestRunnerWritesAndCaches(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(dir, utils.NewNopLogger())
	r.Metrics = utils.NewMetrics()

	l := &stubLoader{name: "covid", outputs: []string{models.TableCovid}, tables: []*models.Table{covidTable(2)}}
	require.NoError(t, r.Run(context.Background(), l, false))
	assert.Equal(t, 1, l.calls)

	raw, err := os.ReadFile(filepath.Join(dir, "covid.csv"))
	require.NoError(t, err)
	assert.Equal(t, "region,month,covid_cases\nDE,2020-01-01,0\nDE,2020-02-01,1\n", string(raw))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Metrics.SourceRows.WithLabelValues(models.TableCovid)))

	require.NoError(t, r.Run(context.Background(), l, false))
	assert.Equal(t, 1, l.calls, "cached file skips the download")

	require.NoError(t, r.Run(context.Background(), l, true))
	assert.Equal(t, 2, l.calls, "force bypasses the cache")
}

func TestRunnerSkipsEmptyTables(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(dir, nil)
	r.Metrics = utils.NewMetrics()

	l := &stubLoader{name: "covid", outputs: []string{models.TableCovid}, tables: []*models.Table{covidTable(0)}}
	require.NoError(t, r.Run(context.Background(), l, false))

	_, err := os.Stat(filepath.Join(dir, "covid.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Metrics.SourceFailures.WithLabelValues(models.TableCovid)))
}

func TestRunnerDegradesOptionalFailure(t *testing.T) {
	r := NewRunner(t.TempDir(), nil)
	l := &stubLoader{name: "mobility", outputs: []string{models.TableMobility}, err: errors.New("timeout")}
	assert.NoError(t, r.Run(context.Background(), l, false))
}

func TestRunnerFailsOnBaseSource(t *testing.T) {
	r := NewRunner(t.TempDir(), nil)
	l := &stubLoader{
		name:    "eurostat",
		outputs: []string{models.TableNights},
		err:     fmt.Errorf("%w: eurostat_nights: 503", ErrBaseSource),
	}
	err := r.Run(context.Background(), l, false)
	assert.ErrorIs(t, err, ErrBaseSource)
}
