package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOTEL_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/raw", cfg.RawDir)
	assert.Equal(t, 2020, cfg.AnalysisStartYear)
	assert.Equal(t, 2022, cfg.AnalysisEndYear)
	assert.Equal(t, "nights_spent", cfg.TargetColumn)
	assert.Equal(t, []int{1, 2, 3}, cfg.LagDepths)
	assert.Equal(t, []string{"gdp", "turnover_index", "covid_cases", "unemployment_rate"}, cfg.LagColumns)
	assert.Equal(t, "ffill_bfill", cfg.FillPolicy["policy_stringency"])
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 1, cfg.MaxRetries)
	assert.Len(t, cfg.OWIDURLs, 2)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("RAW_DIR", "/tmp/raw")
	t.Setenv("ANALYSIS_START_YEAR", "2019")
	t.Setenv("FILL_POLICY", "covid_cases:zero,gdp:interpolate")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/raw", cfg.RawDir)
	assert.Equal(t, 2019, cfg.AnalysisStartYear)
	assert.Equal(t, map[string]string{"covid_cases": "zero", "gdp": "interpolate"}, cfg.FillPolicy)
}

func TestLoadYAMLFileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotel-panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processed_dir: out\nanalysis_end_year: 2023\nhttp_timeout: 5s\n"), 0644))
	t.Setenv("HOTEL_CONFIG_FILE", path)
	t.Setenv("PROCESSED_DIR", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.ProcessedDir)
	assert.Equal(t, 2023, cfg.AnalysisEndYear)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"reversed window", "ANALYSIS_END_YEAR", "2010"},
		{"unknown fill policy", "FILL_POLICY", "gdp:spline"},
		{"unknown cache backend", "CACHE_BACKEND", "memcached"},
		{"bad start date", "START_DATE", "2015/01/01"},
		{"zero concurrency", "MAX_CONCURRENCY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := &Config{RawDir: "raw", ProcessedDir: "proc", MergedFile: "hotel_panel.csv", CleanFile: "hotel_panel_clean.csv"}

	assert.Equal(t, filepath.Join("raw", "covid.csv"), cfg.RawPath("covid"))
	assert.Equal(t, filepath.Join("proc", "hotel_panel.csv"), cfg.MergedPath())
	assert.Equal(t, filepath.Join("proc", "hotel_panel_clean.csv"), cfg.CleanPath())
	assert.Equal(t, filepath.Join("proc", "hotel_panel_clean.xlsx"), cfg.XLSXPath())
	assert.Equal(t, "hotel_panel_clean", cfg.CleanName())
}

func TestWindow(t *testing.T) {
	cfg := &Config{StartDate: "2015-01-01", EndDate: "2022-12-31"}
	assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Start())
	assert.Equal(t, time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), cfg.End())

	cfg.EndDate = ""
	assert.False(t, cfg.End().Before(time.Now().UTC().AddDate(0, 0, -1)))
}

func TestDSN(t *testing.T) {
	cfg := &Config{PostgresHost: "db", PostgresPort: "5432", PostgresUser: "u", PostgresPassword: "p", PostgresDB: "d", PostgresSSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", cfg.DSN())
}
