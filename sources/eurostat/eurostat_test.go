package eurostat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel-panel/models"
	"hotel-panel/sources"
	"hotel-panel/utils"
)

const nightsTSV = "freq,c_resid,unit,nace_r2,geo\\TIME_PERIOD\t2014-12 \t2015-01 \t2015-02 \n" +
	"M,TOTAL,NR,I551,DE\t1 \t100 \t120 p\n" +
	"M,TOTAL,NR,I551,EL\t1 \t50 \t: \n" +
	"M,FOR,NR,I551,DE\t1 \t999 \t999 \n" +
	"M,TOTAL,NR,I551,EU27_2020\t1 \t5000 \t5000 \n" +
	"M,TOTAL,NR,I551,UK\t1 \t70 \t70 \n"

const gdpQuarterlyTSV = "freq,unit,s_adj,na_item,geo\\TIME_PERIOD\t2015-Q1 \t2015-Q2 \n" +
	"Q,CP_MEUR,NSA,B1GQ,DE\t700 \t710 \n"

const gdpAnnualTSV = "freq,unit,s_adj,na_item,geo\\TIME_PERIOD\t2015 \t2016 \n" +
	"A,CLV10_MEUR,NSA,B1G,DE\t2800 \t2900 \n" +
	"A,CLV10_MEUR,NSA,B1G,FR\t2300 \t2400 \n"

func TestParseTSV(t *testing.T) {
	got, err := ParseTSV(strings.NewReader(nightsTSV), models.TableNights, models.NightsSpent,
		map[string][]string{"unit": {"NR"}, "c_resid": {"TOTAL"}, "nace_r2": {"I551"}})
	require.NoError(t, err)

	assert.Equal(t, []string{models.NightsSpent}, got.Columns)
	require.Equal(t, 5, got.Len(), "three DE periods, two GR periods; aggregates and non-EU dropped")

	got.Sort()
	assert.Equal(t, "DE", got.Rows[0].Region)
	assert.Equal(t, time.Date(2014, 12, 1, 0, 0, 0, 0, time.UTC), got.Rows[0].Month)
	assert.Equal(t, models.Float(120), got.Rows[2].Values[0], "flag is stripped")
	assert.Equal(t, "GR", got.Rows[3].Region, "EL is mapped to GR")
	assert.Equal(t, models.Float(50), got.Rows[4].Values[0])
}

func TestParseTSVMissingGeo(t *testing.T) {
	_, err := ParseTSV(strings.NewReader("freq,unit\\TIME_PERIOD\t2015-01\nM,NR\t1\n"), "x", "v", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMissingColumn))
}

func TestParseTSVEmpty(t *testing.T) {
	_, err := ParseTSV(strings.NewReader(""), "x", "v", nil)
	assert.Error(t, err)
}

func TestParseObservation(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"123.4", 123.4, true},
		{"123.4 p", 123.4, true},
		{"123.4 bep", 123.4, true},
		{"12e", 12, true},
		{": ", 0, false},
		{": c", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseObservation(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseObservation(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseObservation(%q)", tt.in)
	}
}

func TestDatasetURL(t *testing.T) {
	assert.Equal(t,
		"https://example.test/data/une_rt_m?format=TSV&compressed=false",
		DatasetURL("https://example.test/data/", "une_rt_m"))
}

func newServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/")
		body, ok := bodies[code]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newLoader(srv *httptest.Server) *Loader {
	fetcher := sources.NewHTTPFetcher(sources.HTTPOptions{Timeout: 5 * time.Second})
	return New(fetcher, Options{
		BaseURL:        srv.URL,
		Start:          time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxConcurrency: 2,
		Logger:         utils.NewNopLogger(),
	})
}

func tableByName(tables []*models.Table, name string) *models.Table {
	for _, t := range tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func TestLoaderLoad(t *testing.T) {
	srv := newServer(t, map[string]string{
		"tour_occ_nim": nightsTSV,
		"namq_10_gdp":  gdpQuarterlyTSV,
		"nama_10_gdp":  gdpAnnualTSV,
	})
	l := newLoader(srv)

	assert.Equal(t, "eurostat", l.Name())
	assert.Equal(t, []string{
		models.TableNights, models.TableGDP, models.TableUnemployment, models.TableTurnover, models.TableHICP,
	}, l.Outputs())

	tables, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 5)

	nights := tableByName(tables, models.TableNights)
	require.NotNil(t, nights)
	assert.Equal(t, 3, nights.Len(), "2014-12 is outside the window")

	gdp := tableByName(tables, models.TableGDP)
	require.NotNil(t, gdp)
	// DE: 2015-01 (quarterly wins over annual), 2015-04, 2016-01. FR: 2015-01, 2016-01.
	require.Equal(t, 5, gdp.Len())
	assert.Equal(t, "DE", gdp.Rows[0].Region)
	assert.Equal(t, models.Float(700), gdp.Rows[0].Values[0])
	assert.Equal(t, models.Float(2900), gdp.Rows[2].Values[0])

	unemp := tableByName(tables, models.TableUnemployment)
	require.NotNil(t, unemp)
	assert.Equal(t, 0, unemp.Len(), "failed optional indicator degrades to an empty table")
	assert.Equal(t, []string{models.UnemploymentRate}, unemp.Columns)
}

func TestLoaderBaseFailure(t *testing.T) {
	srv := newServer(t, map[string]string{"namq_10_gdp": gdpQuarterlyTSV})

	_, err := newLoader(srv).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sources.ErrBaseSource))
}

func TestLoaderEmptyBase(t *testing.T) {
	srv := newServer(t, map[string]string{
		"tour_occ_nim": "freq,c_resid,unit,nace_r2,geo\\TIME_PERIOD\t2015-01 \n",
	})

	_, err := newLoader(srv).Load(context.Background())
	assert.True(t, errors.Is(err, sources.ErrBaseSource))
}
