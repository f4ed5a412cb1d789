package ports

import (
	"context"

	"mapscraper/internal/domain"
)

// ResultRepository stores extracted listings scoped to their owning job.
type ResultRepository interface {
	DeleteResults(ctx context.Context, jobID string) error
	// InsertResults persists listings in order within one transaction and
	// returns how many rows were written.
	InsertResults(ctx context.Context, jobID string, listings []domain.Listing) (int, error)
	ListResults(ctx context.Context, jobID string) ([]domain.Result, error)
}

// Store is a job store and result store behind one handle.
type Store interface {
	JobStore
	ResultRepository
	Close()
}
