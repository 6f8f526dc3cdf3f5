package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config holds all pipeline configuration. Every input and output location is
// named here; no package creates directories or opens files on its own.
type Config struct {
	ConfigFile string `yaml:"-" envconfig:"HOTEL_CONFIG_FILE" default:"hotel-panel.yaml"`

	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR" default:"data/raw" validate:"required"`
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR" default:"data/processed" validate:"required"`
	MergedFile   string `yaml:"merged_file" envconfig:"MERGED_FILE" default:"hotel_panel.csv" validate:"required"`
	CleanFile    string `yaml:"clean_file" envconfig:"CLEAN_FILE" default:"hotel_panel_clean.csv" validate:"required"`
	WriteXLSX    bool   `yaml:"write_xlsx" envconfig:"WRITE_XLSX" default:"false"`

	StartDate         string            `yaml:"start_date" envconfig:"START_DATE" default:"2015-01-01" validate:"datetime=2006-01-02"`
	EndDate           string            `yaml:"end_date" envconfig:"END_DATE" validate:"omitempty,datetime=2006-01-02"`
	AnalysisStartYear int               `yaml:"analysis_start_year" envconfig:"ANALYSIS_START_YEAR" default:"2020" validate:"gte=1990,lte=2100"`
	AnalysisEndYear   int               `yaml:"analysis_end_year" envconfig:"ANALYSIS_END_YEAR" default:"2022" validate:"gtefield=AnalysisStartYear,lte=2100"`
	TargetColumn      string            `yaml:"target_column" envconfig:"TARGET_COLUMN" default:"nights_spent" validate:"required"`
	FillPolicy        map[string]string `yaml:"fill_policy" envconfig:"FILL_POLICY" default:"policy_stringency:ffill_bfill,mobility_retail:ffill_bfill,mobility_work:ffill_bfill" validate:"dive,keys,required,endkeys,oneof=none ffill bfill ffill_bfill zero interpolate"`
	LagColumns        []string          `yaml:"lag_columns" envconfig:"LAG_COLUMNS" default:"gdp,turnover_index,covid_cases,unemployment_rate"`
	LagDepths         []int             `yaml:"lag_depths" envconfig:"LAG_DEPTHS" default:"1,2,3" validate:"dive,gte=1"`

	HTTPTimeout     time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" default:"60s" validate:"gt=0"`
	MaxRetries      int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"1" validate:"gte=1"`
	MaxConcurrency  int           `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"1" validate:"gte=1"`
	RateLimitMs     int           `yaml:"rate_limit_ms" envconfig:"RATE_LIMIT_MS" default:"0" validate:"gte=0"`
	BrowserFallback bool          `yaml:"browser_fallback" envconfig:"BROWSER_FALLBACK" default:"true"`
	ChromeBin       string        `yaml:"chrome_bin" envconfig:"CHROME_BIN"`

	EurostatBaseURL string   `yaml:"eurostat_base_url" envconfig:"EUROSTAT_BASE_URL" default:"https://ec.europa.eu/eurostat/api/dissemination/sdmx/2.1/data" validate:"url"`
	OWIDURLs        []string `yaml:"owid_urls" envconfig:"OWID_URLS" default:"https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/owid-covid-data.csv,https://covid.ourworldindata.org/data/owid-covid-data.csv" validate:"min=1,dive,url"`
	OWIDBackupFile  string   `yaml:"owid_backup_file" envconfig:"OWID_BACKUP_FILE" default:"owid-covid-data.csv"`
	OxCGRTURL       string   `yaml:"oxcgrt_url" envconfig:"OXCGRT_URL" default:"https://raw.githubusercontent.com/OxCGRT/covid-policy-tracker/master/data/OxCGRT_nat_latest.csv" validate:"url"`
	MobilityURL     string   `yaml:"mobility_url" envconfig:"MOBILITY_URL" default:"https://www.gstatic.com/covid19/mobility/Global_Mobility_Report.csv" validate:"url"`
	YahooChartURL   string   `yaml:"yahoo_chart_url" envconfig:"YAHOO_CHART_URL" default:"https://query1.finance.yahoo.com/v8/finance/chart" validate:"url"`

	CacheBackend  string        `yaml:"cache_backend" envconfig:"CACHE_BACKEND" default:"file" validate:"oneof=file redis"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required_if=CacheBackend redis"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisTTL      time.Duration `yaml:"redis_ttl" envconfig:"REDIS_TTL" default:"168h"`

	PostgresEnabled  bool   `yaml:"postgres_enabled" envconfig:"POSTGRES_ENABLED" default:"false"`
	PostgresHost     string `yaml:"postgres_host" envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `yaml:"postgres_port" envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `yaml:"postgres_user" envconfig:"POSTGRES_USER" default:"hotel"`
	PostgresPassword string `yaml:"postgres_password" envconfig:"POSTGRES_PASSWORD" default:"hotel123"`
	PostgresDB       string `yaml:"postgres_db" envconfig:"POSTGRES_DB" default:"hotel_panel"`
	PostgresSSLMode  string `yaml:"postgres_sslmode" envconfig:"POSTGRES_SSLMODE" default:"disable"`

	LogLevel       string `yaml:"log_level" envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat      string `yaml:"log_format" envconfig:"LOG_FORMAT" default:"console" validate:"oneof=console json"`
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL" validate:"omitempty,url"`
}

// Load reads the .env file, the environment and the optional YAML file, and
// returns a validated Config. Values in the YAML file override the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// RawPath returns the cached CSV path for a source table.
func (c *Config) RawPath(name string) string {
	return filepath.Join(c.RawDir, name+".csv")
}

// MergedPath returns the merged panel output path.
func (c *Config) MergedPath() string {
	return filepath.Join(c.ProcessedDir, c.MergedFile)
}

// CleanName is the cleaned panel's name in every sink: CleanFile without
// its extension.
func (c *Config) CleanName() string {
	return strings.TrimSuffix(c.CleanFile, filepath.Ext(c.CleanFile))
}

// CleanPath returns the cleaned panel CSV path.
func (c *Config) CleanPath() string {
	return filepath.Join(c.ProcessedDir, c.CleanName()+".csv")
}

// XLSXPath returns the workbook written next to the cleaned panel.
func (c *Config) XLSXPath() string {
	return filepath.Join(c.ProcessedDir, c.CleanName()+".xlsx")
}

// Start returns the first month downloaded from sources.
func (c *Config) Start() time.Time {
	t, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// End returns the last day downloaded from sources, defaulting to today.
func (c *Config) End() time.Time {
	if c.EndDate != "" {
		if t, err := time.Parse("2006-01-02", c.EndDate); err == nil {
			return t
		}
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
