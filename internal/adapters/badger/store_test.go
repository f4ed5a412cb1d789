package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapscraper/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func seedJobs(t *testing.T, db *DB, n int) []domain.Job {
	t.Helper()
	jobs := make([]domain.Job, n)
	for i := range jobs {
		jobs[i] = domain.Job{ID: fmt.Sprintf("job-%03d", i), Keyword: "plumber", Location: "New York, NY"}
	}
	created, err := db.CreateJobs(context.Background(), jobs)
	require.NoError(t, err)
	require.Equal(t, n, created)
	return jobs
}

func ptr[T any](v T) *T { return &v }

func TestClaimNext_EmptyQueue(t *testing.T) {
	db := openTestDB(t)

	_, found, err := db.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClaimNext_OldestFirst(t *testing.T) {
	db := openTestDB(t)
	// Frozen clock: ordering must come from the sequence, not timestamps.
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	db.now = func() time.Time { return fixed }
	jobs := seedJobs(t, db, 4)

	for _, want := range jobs {
		got, found, err := db.ClaimNext(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, domain.StatusRunning, got.Status)
		require.NotNil(t, got.StartedAt)
	}
	_, found, err := db.ClaimNext(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClaimNext_ConcurrentWorkersNeverShareAJob(t *testing.T) {
	db := openTestDB(t)
	const jobs, workers = 50, 8
	seedJobs(t, db, jobs)

	var mu sync.Mutex
	claimed := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, found, err := db.ClaimNext(context.Background())
				if !assert.NoError(t, err) || !found {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobs)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestClaimNext_CancelledContext(t *testing.T) {
	db := openTestDB(t)
	seedJobs(t, db, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, found, err := db.ClaimNext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, found)
}

func TestMarkCompleted_SetsTotalAndTimestamps(t *testing.T) {
	db := openTestDB(t)
	seedJobs(t, db, 1)
	ctx := context.Background()

	job, _, err := db.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, db.MarkCompleted(ctx, job.ID, 0))

	got, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.TotalFound, "zero results is still a recorded total")
	assert.Equal(t, 0, *got.TotalFound)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.StartedAt.Before(got.CreatedAt))
	assert.False(t, got.FinishedAt.Before(*got.StartedAt))
	assert.Nil(t, got.Error)
}

func TestTransitions_OnlyFromRunning(t *testing.T) {
	db := openTestDB(t)
	jobs := seedJobs(t, db, 1)
	ctx := context.Background()

	assert.ErrorIs(t, db.MarkCompleted(ctx, jobs[0].ID, 3), domain.ErrInvalidTransition)
	assert.ErrorIs(t, db.MarkFailed(ctx, "nope", "boom"), domain.ErrNotFound)
	_, err := db.RequeueJob(ctx, jobs[0].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, _, err = db.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, db.MarkFailed(ctx, jobs[0].ID, "navigation timeout"))
	assert.ErrorIs(t, db.MarkCompleted(ctx, jobs[0].ID, 1), domain.ErrInvalidTransition)

	got, err := db.GetJob(ctx, jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "navigation timeout", *got.Error)
	assert.Nil(t, got.TotalFound)
}

func TestRequeue_ReplacesResultsOnRerun(t *testing.T) {
	db := openTestDB(t)
	seedJobs(t, db, 1)
	ctx := context.Background()

	job, _, err := db.ClaimNext(ctx)
	require.NoError(t, err)
	_, err = db.InsertResults(ctx, job.ID, []domain.Listing{{Name: ptr("old-1")}, {Name: ptr("old-2")}})
	require.NoError(t, err)
	require.NoError(t, db.MarkCompleted(ctx, job.ID, 2))

	requeued, err := db.RequeueJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, requeued.Status)
	assert.Nil(t, requeued.StartedAt)
	assert.Nil(t, requeued.FinishedAt)

	again, found, err := db.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, job.ID, again.ID)

	require.NoError(t, db.DeleteResults(ctx, job.ID))
	_, err = db.InsertResults(ctx, job.ID, []domain.Listing{{Name: ptr("new-1")}})
	require.NoError(t, err)

	results, err := db.ListResults(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new-1", *results[0].Name)
}

func TestInsertResults_OrderAndFields(t *testing.T) {
	db := openTestDB(t)
	seedJobs(t, db, 2)
	ctx := context.Background()

	listings := make([]domain.Listing, 12)
	for i := range listings {
		listings[i] = domain.Listing{Name: ptr(fmt.Sprintf("biz-%02d", i))}
	}
	listings[3].Rating = ptr(4.7)
	listings[3].ReviewsCount = ptr(0)
	n, err := db.InsertResults(ctx, "job-000", listings)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = db.InsertResults(ctx, "job-001", []domain.Listing{{Name: ptr("other")}})
	require.NoError(t, err)

	results, err := db.ListResults(ctx, "job-000")
	require.NoError(t, err)
	require.Len(t, results, 12)
	for i, r := range results {
		assert.Equal(t, i, r.Position)
		assert.Equal(t, fmt.Sprintf("biz-%02d", i), *r.Name)
	}
	require.NotNil(t, results[3].ReviewsCount)
	assert.Equal(t, 0, *results[3].ReviewsCount)
	assert.InDelta(t, 4.7, *results[3].Rating, 1e-9)
	assert.Nil(t, results[3].Category)
	assert.Nil(t, results[3].Lat)
}

func TestInsertResults_UnknownJob(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertResults(context.Background(), "ghost", []domain.Listing{{}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListJobs_NewestFirstAndCounts(t *testing.T) {
	db := openTestDB(t)
	seedJobs(t, db, 5)
	ctx := context.Background()
	_, _, err := db.ClaimNext(ctx)
	require.NoError(t, err)

	jobs, err := db.ListJobs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-004", jobs[0].ID)
	assert.Equal(t, "job-002", jobs[2].ID)

	counts, err := db.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, counts[domain.StatusPending])
	assert.Equal(t, 1, counts[domain.StatusRunning])
	assert.Equal(t, 0, counts[domain.StatusCompleted])
}
