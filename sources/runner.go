package sources

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"hotel-panel/models"
	"hotel-panel/storage"
	"hotel-panel/utils"
)

// Loader downloads one external dataset and normalizes it into tables.
type Loader interface {
	// Name identifies the loader in logs and metrics.
	Name() string
	// Outputs lists the table names Load produces, one raw file each.
	Outputs() []string
	// Load fetches and normalizes the dataset. Optional sources may return
	// an error; the runner degrades it to "no output". An error wrapping
	// ErrBaseSource aborts the run.
	Load(ctx context.Context) ([]*models.Table, error)
}

// Runner executes loaders against the raw directory. A loader is skipped
// when all of its outputs are already cached.
type Runner struct {
	RawDir  string
	Writer  *storage.CSVWriter
	Cache   storage.Cache
	Metrics *utils.Metrics
	Logger  *utils.Logger
}

// NewRunner creates a Runner with a file-existence cache.
func NewRunner(rawDir string, logger *utils.Logger) *Runner {
	return &Runner{
		RawDir: rawDir,
		Writer: storage.NewCSVWriter(rawDir, logger),
		Cache:  storage.FileCache{},
		Logger: logger,
	}
}

// Path returns the raw file of a table.
func (r *Runner) Path(table string) string {
	return filepath.Join(r.RawDir, table+".csv")
}

// Run loads l unless its outputs are cached and force is false. Tables with
// no rows are not written, so the next run retries them.
func (r *Runner) Run(ctx context.Context, l Loader, force bool) error {
	start := time.Now()
	defer r.Metrics.ObserveStage("load_"+l.Name(), start)

	if !force {
		cached, err := r.cached(ctx, l.Outputs())
		if err != nil {
			return err
		}
		if cached {
			r.Logger.Info("[%s] Using cached files in %s", l.Name(), r.RawDir)
			return nil
		}
	}

	r.Logger.Info("[%s] Downloading...", l.Name())
	tables, err := l.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrBaseSource) || ctx.Err() != nil {
			return fmt.Errorf("%s: %w", l.Name(), err)
		}
		r.Logger.Error("[%s] Download failed, continuing without it: %v", l.Name(), err)
		for _, name := range l.Outputs() {
			r.Metrics.SourceLoaded(name, 0)
		}
		return nil
	}

	for _, t := range tables {
		r.Metrics.SourceLoaded(t.Name, t.Len())
		if t.Len() == 0 {
			r.Logger.Warn("[%s] %s is empty, not writing it", l.Name(), t.Name)
			continue
		}

		path := r.Path(t.Name)
		if err := r.Writer.WriteTable(path, t); err != nil {
			return fmt.Errorf("%s: %w", l.Name(), err)
		}
		if err := r.Cache.Store(ctx, t.Name, path); err != nil {
			r.Logger.Warn("[%s] Cache store failed for %s: %v", l.Name(), t.Name, err)
		}
		r.Logger.Info("[%s] Saved %s → %s (%d rows, %d regions)",
			l.Name(), t.Name, path, t.Len(), len(t.Regions()))
	}
	return nil
}

func (r *Runner) cached(ctx context.Context, outputs []string) (bool, error) {
	for _, name := range outputs {
		ok, err := r.Cache.Restore(ctx, name, r.Path(name))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return len(outputs) > 0, nil
}
