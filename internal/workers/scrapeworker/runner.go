package scrapeworker

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"mapscraper/internal/domain"
	"mapscraper/internal/ports"
)

// Extractor produces the listings for one job from an open browser session.
type Extractor interface {
	Extract(ctx context.Context, sess ports.BrowserSession, keyword, location string, maxResults int) ([]domain.Listing, error)
}

type Options struct {
	MaxResults  int
	IdleBackoff time.Duration
	SettleDelay time.Duration
	MaxErrorLen int
}

// Outcome is the state a Step ends in before the loop returns to idle.
type Outcome int

const (
	// OutcomeIdle means nothing was pending.
	OutcomeIdle Outcome = iota
	// OutcomeClaimError means the store could not be reached.
	OutcomeClaimError
	OutcomeCompleted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeClaimError:
		return "claim_error"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Runner is one sequential worker: claim a job, run it, record the result.
type Runner struct {
	name      string
	jobs      ports.JobRepository
	results   ports.ResultRepository
	browsers  ports.BrowserFactory
	extractor Extractor
	opts      Options
	logger    arbor.ILogger
}

func New(name string, jobs ports.JobRepository, results ports.ResultRepository, browsers ports.BrowserFactory,
	extractor Extractor, opts Options, logger arbor.ILogger) *Runner {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 40
	}
	if opts.MaxErrorLen <= 0 {
		opts.MaxErrorLen = 1000
	}
	return &Runner{
		name:      name,
		jobs:      jobs,
		results:   results,
		browsers:  browsers,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
	}
}

// Run loops until ctx is cancelled, sleeping the idle backoff when there is
// nothing to claim and the settle delay after each job.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info().Str("worker", r.name).Msg("Worker started")
	for {
		outcome := r.Step(ctx)
		if ctx.Err() != nil {
			r.logger.Info().Str("worker", r.name).Msg("Worker stopped")
			return
		}
		wait := r.opts.SettleDelay
		if outcome == OutcomeIdle || outcome == OutcomeClaimError {
			wait = r.opts.IdleBackoff
		}
		select {
		case <-ctx.Done():
			r.logger.Info().Str("worker", r.name).Msg("Worker stopped")
			return
		case <-time.After(wait):
		}
	}
}

// Step makes one claim attempt and, when a job is claimed, drives it to a
// terminal status.
func (r *Runner) Step(ctx context.Context) Outcome {
	job, found, err := r.jobs.ClaimNext(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn().Err(err).Str("worker", r.name).Msg("Job claim failed")
		}
		return OutcomeClaimError
	}
	if !found {
		r.logger.Trace().Str("worker", r.name).Msg("No pending jobs")
		return OutcomeIdle
	}

	r.logger.Info().
		Str("worker", r.name).
		Str("job_id", job.ID).
		Str("keyword", job.Keyword).
		Str("location", job.Location).
		Msg("Running job")

	start := time.Now()
	total, err := r.process(ctx, job)
	// Bookkeeping must land even when shutdown cancelled the job.
	bg := context.WithoutCancel(ctx)
	if err == nil {
		if err = r.jobs.MarkCompleted(bg, job.ID, total); err == nil {
			r.logger.Info().
				Str("worker", r.name).
				Str("job_id", job.ID).
				Int("results", total).
				Dur("elapsed", time.Since(start)).
				Msg("Job completed")
			return OutcomeCompleted
		}
		err = fmt.Errorf("mark completed: %w", err)
		// A failed job never keeps result rows.
		if derr := r.results.DeleteResults(bg, job.ID); derr != nil {
			r.logger.Error().Err(derr).Str("worker", r.name).Str("job_id", job.ID).Msg("Could not clear results of failed job")
		}
	}

	r.logger.Error().Err(err).Str("worker", r.name).Str("job_id", job.ID).Msg("Job failed")
	if ferr := r.jobs.MarkFailed(bg, job.ID, Truncate(err.Error(), r.opts.MaxErrorLen)); ferr != nil {
		r.logger.Error().Err(ferr).Str("worker", r.name).Str("job_id", job.ID).Msg("Could not record job failure")
	}
	return OutcomeFailed
}

// process runs one claimed job and returns the number of results
// persisted. The browser session is closed before it returns.
func (r *Runner) process(ctx context.Context, job domain.Job) (total int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	sess, err := r.browsers.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.logger.Warn().Err(cerr).Str("job_id", job.ID).Msg("Browser session close failed")
		}
	}()

	if err := r.results.DeleteResults(ctx, job.ID); err != nil {
		return 0, fmt.Errorf("clear previous results: %w", err)
	}
	listings, err := r.extractor.Extract(ctx, sess, job.Keyword, job.Location, r.opts.MaxResults)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	total, err = r.results.InsertResults(ctx, job.ID, listings)
	if err != nil {
		return 0, fmt.Errorf("save results: %w", err)
	}
	return total, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// RunPool runs n runners built by newRunner concurrently and blocks until
// all of them have stopped.
func RunPool(ctx context.Context, n int, newRunner func(i int) *Runner) {
	if n < 1 {
		return
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			newRunner(idx).Run(ctx)
		}(i)
	}
	wg.Wait()
}
