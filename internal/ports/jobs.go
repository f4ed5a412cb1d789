package ports

import (
	"context"

	"mapscraper/internal/domain"
)

// JobRepository supports claiming and finishing scrape jobs. It is the
// only surface the worker loop needs from the job store.
type JobRepository interface {
	// ClaimNext atomically moves the oldest pending job to running and
	// returns it. found is false when nothing is pending.
	ClaimNext(ctx context.Context) (job domain.Job, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string, total int) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
}

// JobStore is the full job table used by submission and listing.
type JobStore interface {
	JobRepository
	CreateJobs(ctx context.Context, jobs []domain.Job) (int, error)
	ListJobs(ctx context.Context, limit int) ([]domain.Job, error)
	GetJob(ctx context.Context, jobID string) (domain.Job, error)
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error)
	RequeueJob(ctx context.Context, jobID string) (domain.Job, error)
}
