package jobs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"mapscraper/internal/domain"
	"mapscraper/internal/ports"
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 200
)

// CSVHeader is the column order of a results export.
var CSVHeader = []string{"name", "category", "address", "phone", "website", "rating", "reviews_count", "lat", "lng"}

type bulkRequest struct {
	Keywords  []string `validate:"min=1,dive,required"`
	Locations []string `validate:"min=1,dive,required"`
}

var _ ports.Jobs = (*Service)(nil)

type Service struct {
	store    ports.JobStore
	results  ports.ResultRepository
	validate *validator.Validate
	logger   arbor.ILogger
}

func New(store ports.JobStore, results ports.ResultRepository, logger arbor.ILogger) *Service {
	return &Service{store: store, results: results, validate: validator.New(), logger: logger}
}

// ParseLines splits newline-separated form input, trimming each line and
// dropping blanks.
func ParseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// CreateBulk enqueues one pending job per keyword and location pair.
func (s *Service) CreateBulk(ctx context.Context, keywords, locations []string) (int, error) {
	req := bulkRequest{Keywords: clean(keywords), Locations: clean(locations)}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].StructField() == "Locations" {
			return 0, domain.ErrNoLocations
		}
		return 0, domain.ErrNoKeywords
	}

	jobs := make([]domain.Job, 0, len(req.Keywords)*len(req.Locations))
	for _, kw := range req.Keywords {
		for _, loc := range req.Locations {
			jobs = append(jobs, domain.Job{
				ID:       uuid.NewString(),
				Keyword:  kw,
				Location: loc,
				Status:   domain.StatusPending,
			})
		}
	}
	n, err := s.store.CreateJobs(ctx, jobs)
	if err != nil {
		return 0, fmt.Errorf("create jobs: %w", err)
	}
	s.logger.Info().
		Int("created", n).
		Int("keywords", len(req.Keywords)).
		Int("locations", len(req.Locations)).
		Msg("Jobs enqueued")
	return n, nil
}

// List returns the newest jobs first. A non-positive limit means the
// default; larger limits are capped.
func (s *Service) List(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.ListJobs(ctx, limit)
}

func (s *Service) Stats(ctx context.Context) (map[domain.JobStatus]int, error) {
	return s.store.CountByStatus(ctx)
}

func (s *Service) Get(ctx context.Context, jobID string) (domain.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// Requeue puts a finished job back in the queue. Its results are replaced
// when a worker runs it again.
func (s *Service) Requeue(ctx context.Context, jobID string) (domain.Job, error) {
	job, err := s.store.RequeueJob(ctx, jobID)
	if err != nil {
		return domain.Job{}, err
	}
	s.logger.Info().Str("job_id", jobID).Msg("Job requeued")
	return job, nil
}

// ExportCSV writes the job's results in insertion order. Absent fields are
// empty cells.
func (s *Service) ExportCSV(ctx context.Context, jobID string, w io.Writer) error {
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return err
	}
	results, err := s.results.ListResults(ctx, jobID)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(row(r.Listing)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(l domain.Listing) []string {
	return []string{
		str(l.Name),
		str(l.Category),
		str(l.Address),
		str(l.Phone),
		str(l.Website),
		float(l.Rating),
		integer(l.ReviewsCount),
		float(l.Lat),
		float(l.Lng),
	}
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func integer(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
