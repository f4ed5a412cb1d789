package ports

import (
	"context"
	"io"

	"mapscraper/internal/domain"
)

// Jobs creates, lists and exports scrape jobs.
type Jobs interface {
	CreateBulk(ctx context.Context, keywords, locations []string) (int, error)
	List(ctx context.Context, limit int) ([]domain.Job, error)
	Stats(ctx context.Context) (map[domain.JobStatus]int, error)
	Get(ctx context.Context, jobID string) (domain.Job, error)
	Requeue(ctx context.Context, jobID string) (domain.Job, error)
	ExportCSV(ctx context.Context, jobID string, w io.Writer) error
}
