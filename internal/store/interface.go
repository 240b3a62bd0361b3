// Package store keeps imported dives in a local sqlite catalog so they can
// be listed and exported again without the original log file.
package store

import (
	"context"
	"time"

	"codeberg.org/mutker/unabara/internal/dive"
)

// Catalog persists dive series.
type Catalog interface {
	Save(ctx context.Context, series *dive.Series) (string, error)
	List(ctx context.Context) ([]Entry, error)
	Load(ctx context.Context, id string) (*dive.Series, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Entry summarizes a stored dive.
type Entry struct {
	ID        string
	Number    int
	Name      string
	Location  string
	StartTime time.Time
	Duration  float64
	MaxDepth  float64
	Samples   int
	SavedAt   time.Time
}
