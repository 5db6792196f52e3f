package prefixes

import (
	"context"
	"fmt"

	"prefixhider/internal/config"
)

// Backend is a persistent prefix list.
type Backend interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, list []string) error
	Prefixes(ctx context.Context) ([]string, error)
	Close() error
}

// Close is a no-op; the file is not held open.
func (f *FileSource) Close() error { return nil }

// Open returns the backend selected by cfg.Source.
func Open(cfg config.StoreConfig) (Backend, error) {
	switch cfg.Source {
	case config.SourceSQLite, "":
		return NewStore(cfg.DatabasePath)
	case config.SourceFile:
		return NewFileSource(cfg.FilePath), nil
	default:
		return nil, fmt.Errorf("unknown prefix source %q", cfg.Source)
	}
}
