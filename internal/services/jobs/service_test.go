package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"mapscraper/internal/adapters/badger"
	"mapscraper/internal/domain"
)

func newTestService(t *testing.T) (*Service, *badger.DB) {
	t.Helper()
	db, err := badger.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return New(db, db, arbor.NewLogger()), db
}

func ptr[T any](v T) *T { return &v }

func TestParseLines(t *testing.T) {
	assert.Equal(t, []string{"dentist", "plumber"}, ParseLines(" dentist \r\n\n plumber\n  "))
	assert.Empty(t, ParseLines(" \n\t\n"))
}

func TestCreateBulk_CrossProduct(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	n, err := svc.CreateBulk(ctx, []string{"dentist", "plumber"}, []string{"LA"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	jobs, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	pairs := map[string]bool{}
	for _, j := range jobs {
		assert.Equal(t, domain.StatusPending, j.Status)
		assert.NotEmpty(t, j.ID)
		pairs[j.Keyword+"|"+j.Location] = true
	}
	assert.Equal(t, map[string]bool{"dentist|LA": true, "plumber|LA": true}, pairs)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats[domain.StatusPending])
	assert.Equal(t, 0, stats[domain.StatusRunning])
}

func TestCreateBulk_RejectsEmptyLists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBulk(ctx, nil, []string{"LA"})
	assert.ErrorIs(t, err, domain.ErrNoKeywords)

	_, err = svc.CreateBulk(ctx, []string{"  ", ""}, []string{"LA"})
	assert.ErrorIs(t, err, domain.ErrNoKeywords)

	_, err = svc.CreateBulk(ctx, []string{"dentist"}, []string{" "})
	assert.ErrorIs(t, err, domain.ErrNoLocations)

	_, err = svc.CreateBulk(ctx, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNoKeywords)

	jobs, err := svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestList_CapsLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	kws := make([]string, 0, 210)
	for i := 0; i < 210; i++ {
		kws = append(kws, strings.Repeat("k", i+1))
	}
	_, err := svc.CreateBulk(ctx, kws, []string{"LA"})
	require.NoError(t, err)

	jobs, err := svc.List(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, jobs, MaxListLimit)
	assert.Equal(t, kws[209], jobs[0].Keyword, "newest first")

	jobs, err = svc.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestExportCSV_HeaderAndRowsInOrder(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBulk(ctx, []string{"plumber"}, []string{"LA"})
	require.NoError(t, err)
	job, found, err := db.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)

	listings := []domain.Listing{
		{Name: ptr("Joe's Plumbing, Inc."), Rating: ptr(4.5), ReviewsCount: ptr(12), Phone: ptr("(212) 555-0100")},
		{Name: ptr("Second"), ReviewsCount: ptr(0)},
		{},
	}
	_, err = db.InsertResults(ctx, job.ID, listings)
	require.NoError(t, err)
	require.NoError(t, db.MarkCompleted(ctx, job.ID, len(listings)))

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, job.ID, &buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name,category,address,phone,website,rating,reviews_count,lat,lng", lines[0])

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Joe's Plumbing, Inc.", "", "", "(212) 555-0100", "", "4.5", "12", "", ""}, records[1])
	assert.Equal(t, []string{"Second", "", "", "", "", "", "0", "", ""}, records[2])
	assert.Equal(t, []string{"", "", "", "", "", "", "", "", ""}, records[3])
}

func TestExportCSV_PendingJobHasHeaderOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBulk(ctx, []string{"plumber"}, []string{"LA"})
	require.NoError(t, err)
	jobs, err := svc.List(ctx, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, jobs[0].ID, &buf))
	assert.Equal(t, strings.Join(CSVHeader, ",")+"\n", buf.String())
}

func TestExportCSV_UnknownJob(t *testing.T) {
	svc, _ := newTestService(t)
	var buf bytes.Buffer
	err := svc.ExportCSV(context.Background(), "missing", &buf)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, buf.Len())
}

func TestRequeue(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBulk(ctx, []string{"plumber"}, []string{"LA"})
	require.NoError(t, err)
	job, _, err := db.ClaimNext(ctx)
	require.NoError(t, err)

	_, err = svc.Requeue(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "running jobs stay with their worker")

	require.NoError(t, db.MarkFailed(ctx, job.ID, "timeout"))
	got, err := svc.Requeue(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.Error)
	assert.Nil(t, got.StartedAt)

	_, err = svc.Requeue(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
