// Package app wires configuration, sources, services and sinks into the
// stages run by the command-line entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"hotel-panel/config"
	"hotel-panel/models"
	"hotel-panel/services"
	"hotel-panel/sources"
	"hotel-panel/sources/eurostat"
	"hotel-panel/sources/mobility"
	"hotel-panel/sources/owid"
	"hotel-panel/sources/oxcgrt"
	"hotel-panel/sources/yahoo"
	"hotel-panel/storage"
	"hotel-panel/utils"
)

// Source loader names, in the order the full pipeline runs them.
const (
	SourceEurostat   = "eurostat"
	SourceCovid      = "covid"
	SourceStringency = "stringency"
	SourceMobility   = "mobility"
	SourceFX         = "fxrates"
)

// SourceNames lists every loader. The base source comes first.
var SourceNames = []string{SourceEurostat, SourceCovid, SourceStringency, SourceMobility, SourceFX}

// PushJob is the Pushgateway job name of a run.
const PushJob = "hotel_panel"

// Pipeline holds the shared dependencies of one run.
type Pipeline struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *utils.Metrics
	runID   uuid.UUID

	http    *sources.HTTPFetcher
	runner  *sources.Runner
	sinks   []storage.PanelWriter
	store   storage.PanelReader
	closers []io.Closer
}

// New builds a Pipeline from cfg. With the redis cache backend it connects
// to Redis before returning. Every log line of the run carries its ID.
func New(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*Pipeline, error) {
	runID := uuid.New()
	logger = logger.With("run", runID.String())
	p := &Pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: utils.NewMetrics(),
		runID:   runID,
	}

	p.http = sources.NewHTTPFetcher(sources.HTTPOptions{
		Timeout:     cfg.HTTPTimeout,
		MaxRetries:  cfg.MaxRetries,
		RateLimitMs: cfg.RateLimitMs,
		Logger:      logger,
	})

	p.runner = sources.NewRunner(cfg.RawDir, logger)
	p.runner.Metrics = p.metrics
	if cfg.CacheBackend == "redis" {
		cache, err := storage.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisTTL, logger)
		if err != nil {
			return nil, err
		}
		p.runner.Cache = cache
		p.closers = append(p.closers, cache)
	}

	logger.Info("Raw: %s | processed: %s | cache: %s", cfg.RawDir, cfg.ProcessedDir, cfg.CacheBackend)
	return p, nil
}

// Metrics returns the run's collectors.
func (p *Pipeline) Metrics() *utils.Metrics { return p.metrics }

// Loader returns the named source loader.
func (p *Pipeline) Loader(name string) (sources.Loader, error) {
	owidOpts := owid.Options{
		URLs:       p.cfg.OWIDURLs,
		BackupFile: filepath.Join(p.cfg.RawDir, p.cfg.OWIDBackupFile),
		Logger:     p.logger,
	}

	switch name {
	case SourceEurostat:
		return eurostat.New(p.http, eurostat.Options{
			BaseURL:        p.cfg.EurostatBaseURL,
			Start:          p.cfg.Start(),
			End:            p.cfg.End(),
			MaxConcurrency: p.cfg.MaxConcurrency,
			RateLimitMs:    p.cfg.RateLimitMs,
			Logger:         p.logger,
		}), nil
	case SourceCovid:
		return owid.NewCovidLoader(p.http, owidOpts), nil
	case SourceStringency:
		return oxcgrt.New(p.http, oxcgrt.Options{URL: p.cfg.OxCGRTURL, OWID: owidOpts, Logger: p.logger}), nil
	case SourceMobility:
		return mobility.New(p.http, p.cfg.MobilityURL, p.logger), nil
	case SourceFX:
		return yahoo.New(p.fxFetcher(), yahoo.Options{
			BaseURL: p.cfg.YahooChartURL,
			Start:   p.cfg.Start(),
			End:     p.cfg.End(),
			Logger:  p.logger,
		}), nil
	}
	return nil, fmt.Errorf("app: unknown source %q (want one of %s)", name, strings.Join(SourceNames, ", "))
}

// fxFetcher falls back to headless Chrome when the chart API rejects the
// plain HTTP client.
func (p *Pipeline) fxFetcher() sources.Fetcher {
	if !p.cfg.BrowserFallback {
		return p.http
	}
	return &sources.FallbackFetcher{
		Fetchers: []sources.Fetcher{p.http, sources.NewBrowserFetcher(p.cfg.ChromeBin, p.cfg.HTTPTimeout, p.logger)},
		Logger:   p.logger,
	}
}

// Fetch runs the named loaders in order. Only a base source failure stops it.
func (p *Pipeline) Fetch(ctx context.Context, names []string, force bool) error {
	for _, name := range names {
		l, err := p.Loader(name)
		if err != nil {
			return err
		}
		if err := p.runner.Run(ctx, l, force); err != nil {
			return err
		}
	}
	return nil
}

// Merge joins the raw tables into the panel and writes it to the merged path.
func (p *Pipeline) Merge(ctx context.Context) (*models.Table, error) {
	defer p.metrics.ObserveStage("merge", time.Now())

	base := services.Source{Name: models.BaseTable, Path: p.cfg.RawPath(models.BaseTable)}
	aux := make([]services.Source, 0, len(models.AuxiliaryTables))
	for _, name := range models.AuxiliaryTables {
		aux = append(aux, services.Source{Name: name, Path: p.cfg.RawPath(name)})
	}

	panel, err := services.NewMerger(p.logger).MergeFiles(base, aux)
	if err != nil {
		return nil, err
	}

	path := p.cfg.MergedPath()
	if err := storage.NewCSVWriter(p.cfg.ProcessedDir, p.logger).WriteTable(path, panel); err != nil {
		return nil, err
	}
	p.metrics.PanelWritten(panel.Name, panel.Len())
	p.logger.Info("Saved merged panel → %s (%d rows)", path, panel.Len())
	return panel, nil
}

// Clean filters, fills and enriches the merged panel and writes it to every
// configured sink. A nil merged panel is read back from the merged path. Lags
// are looked up in the merged panel, so months just before the analysis
// window still feed the first lags.
func (p *Pipeline) Clean(ctx context.Context, merged *models.Table) (*models.Table, error) {
	defer p.metrics.ObserveStage("clean", time.Now())

	if merged == nil {
		t, err := storage.NewCSVReader(p.logger).ReadTable(p.cfg.MergedPath(), services.PanelName)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("app: %w: run merge first (%s)", services.ErrMissingBase, p.cfg.MergedPath())
			}
			return nil, err
		}
		merged = t
	}

	fill, err := services.ParseFillPolicy(p.cfg.FillPolicy)
	if err != nil {
		return nil, err
	}
	cleaned, err := services.NewCleaner(services.CleanOptions{
		StartYear: p.cfg.AnalysisStartYear,
		EndYear:   p.cfg.AnalysisEndYear,
		Target:    p.cfg.TargetColumn,
		Fill:      fill,
	}, p.logger).Clean(merged)
	if err != nil {
		return nil, err
	}
	services.NewEnricher(p.cfg.LagColumns, p.cfg.LagDepths, p.logger).EnrichFrom(cleaned, merged)

	if err := p.write(ctx, cleaned); err != nil {
		return nil, err
	}
	p.metrics.PanelWritten(cleaned.Name, cleaned.Len())
	return cleaned, nil
}

// write stores panel in every sink under the configured clean name.
func (p *Pipeline) write(ctx context.Context, panel *models.Table) error {
	sinks, err := p.openSinks(ctx)
	if err != nil {
		return err
	}
	name := p.cfg.CleanName()
	for _, sink := range sinks {
		if err := sink.WritePanel(ctx, name, panel); err != nil {
			return err
		}
	}
	p.logger.Info("Saved clean panel → %s (%d rows × %d columns, %d sinks)",
		p.cfg.CleanPath(), panel.Len(), len(panel.Header()), len(sinks))
	return nil
}

// openSinks opens the configured panel sinks on first use. The CSV sink is
// always present; the sinks are closed with the pipeline.
func (p *Pipeline) openSinks(ctx context.Context) ([]storage.PanelWriter, error) {
	if p.sinks != nil {
		return p.sinks, nil
	}

	sinks := []storage.PanelWriter{storage.NewCSVWriter(p.cfg.ProcessedDir, p.logger)}
	if p.cfg.WriteXLSX {
		sinks = append(sinks, storage.NewXLSXWriter(p.cfg.ProcessedDir, p.logger))
	}
	if p.cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(ctx, p.cfg.DSN(), p.runID, p.logger)
		if err != nil {
			p.logger.Error("Make sure Docker is running: docker compose up -d")
			return nil, err
		}
		sinks = append(sinks, pg)
		p.store = pg
	}

	for _, sink := range sinks {
		p.closers = append(p.closers, sink)
	}
	p.sinks = sinks
	return sinks, nil
}

// Report prints the insight summary of a cleaned panel. When a stored copy
// can be read back (PostgreSQL), the summary is built from it; otherwise
// from panel.
func (p *Pipeline) Report(ctx context.Context, panel *models.Table) *models.InsightReport {
	source := panel
	if p.store != nil {
		stored, err := p.store.FetchPanel(ctx, p.cfg.CleanName())
		switch {
		case err != nil:
			p.logger.Warn("Could not read the stored panel back, reporting the in-memory copy: %v", err)
		case stored.Len() == 0:
			p.logger.Warn("Stored panel %s is empty, reporting the in-memory copy", p.cfg.CleanName())
		default:
			source = stored
		}
	}

	svc := services.NewInsightService(p.logger)
	report := svc.Generate(source, services.InsightOptions{
		FromYear: p.cfg.AnalysisStartYear,
		ToYear:   p.cfg.AnalysisEndYear,
		Target:   p.cfg.TargetColumn,
	})
	svc.Print(report)
	return report
}

// Run executes every stage: fetch all sources, merge, clean, report.
func (p *Pipeline) Run(ctx context.Context, force bool) error {
	start := time.Now()
	if err := p.Fetch(ctx, SourceNames, force); err != nil {
		return err
	}
	merged, err := p.Merge(ctx)
	if err != nil {
		return err
	}
	cleaned, err := p.Clean(ctx, merged)
	if err != nil {
		return err
	}
	p.Report(ctx, cleaned)
	p.metrics.ObserveStage("total", start)
	p.logger.Duration("Pipeline", start)
	return nil
}

// Close pushes metrics when a Pushgateway is configured and releases
// connections.
func (p *Pipeline) Close() error {
	var errs []error
	if err := p.metrics.Push(p.cfg.PushgatewayURL, PushJob); err != nil {
		p.logger.Warn("%v", err)
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
