package storage

import (
	"context"

	"hotel-panel/models"
)

// PanelWriter is the interface any panel sink must satisfy.
type PanelWriter interface {
	WritePanel(ctx context.Context, name string, panel *models.Table) error
	Close() error
}

// PanelReader reads a previously written panel back.
type PanelReader interface {
	FetchPanel(ctx context.Context, name string) (*models.Table, error)
}

// Cache makes raw source tables available on disk, skipping downloads when
// a copy already exists.
type Cache interface {
	// Restore reports whether the named table is available at path,
	// materializing it there first if the backend holds a copy.
	Restore(ctx context.Context, name, path string) (bool, error)
	// Store records the freshly written file at path under name.
	Store(ctx context.Context, name, path string) error
}
