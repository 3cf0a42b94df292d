package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/common"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "badger"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestJob() *models.ReportJob {
	return models.NewReportJob("user-1", models.ReportParams{
		Days:               7,
		Format:             models.FormatPDF,
		DestinationChannel: "@technews",
	})
}

func TestJobCreateAndGet(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.Create(ctx, job))

	loaded, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, loaded.ID)
	assert.Equal(t, models.JobStatePending, loaded.State)
	assert.Equal(t, job.Fingerprint, loaded.Fingerprint)
}

func TestJobCreateDuplicateConflicts(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.Create(ctx, job))

	err := store.Create(ctx, job)
	assert.True(t, models.IsCategory(err, models.ErrConflict))
}

func TestJobGetNotFound(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())

	job, err := store.Get(context.Background(), "job_missing")
	assert.Nil(t, job)
	assert.True(t, models.IsCategory(err, models.ErrNotFound))
}

func TestUpdateIfAppliesMutation(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.Create(ctx, job))

	updated, err := store.UpdateIf(ctx, job.ID, models.JobStatePending, func(j *models.ReportJob) {
		j.State = models.JobStateFetching
		j.FetchAttempts = 1
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFetching, updated.State)
	assert.Equal(t, 1, updated.FetchAttempts)
	assert.True(t, updated.UpdatedAt.After(job.CreatedAt) || updated.UpdatedAt.Equal(job.CreatedAt))

	persisted, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFetching, persisted.State)
}

func TestUpdateIfStateMismatchConflicts(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.Create(ctx, job))

	updated, err := store.UpdateIf(ctx, job.ID, models.JobStateFetching, func(j *models.ReportJob) {
		j.State = models.JobStateRendering
	})
	assert.Nil(t, updated)
	assert.True(t, models.IsCategory(err, models.ErrConflict))

	// Losing side of a race: the job stays where the winner left it
	persisted, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatePending, persisted.State)
}

func TestUpdateIfRejectsIllegalTransition(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.Create(ctx, job))

	_, err := store.UpdateIf(ctx, job.ID, models.JobStatePending, func(j *models.ReportJob) {
		j.State = models.JobStateDone
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal state transition")
}

func TestUpdateIfTerminalStateIsFinal(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.Create(ctx, job))

	_, err := store.UpdateIf(ctx, job.ID, models.JobStatePending, func(j *models.ReportJob) {
		j.State = models.JobStateFailed
		j.ErrorCategory = models.ErrCancelled
	})
	require.NoError(t, err)

	_, err = store.UpdateIf(ctx, job.ID, models.JobStatePending, func(j *models.ReportJob) {
		j.State = models.JobStateFetching
	})
	assert.True(t, models.IsCategory(err, models.ErrConflict))
}

func TestUpdateIfConcurrentSingleWinner(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.Create(ctx, job))

	const racers = 8
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		go func() {
			_, err := store.UpdateIf(ctx, job.ID, models.JobStatePending, func(j *models.ReportJob) {
				j.State = models.JobStateFetching
			})
			results <- err
		}()
	}

	winners := 0
	for i := 0; i < racers; i++ {
		if err := <-results; err == nil {
			winners++
		} else {
			assert.True(t, models.IsCategory(err, models.ErrConflict))
		}
	}
	assert.Equal(t, 1, winners)
}

func TestFindRecentByFingerprint(t *testing.T) {
	store := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	first := newTestJob()
	require.NoError(t, store.Create(ctx, first))

	second := newTestJob()
	second.CreatedAt = time.Now().Add(time.Second)
	require.NoError(t, store.Create(ctx, second))

	other := models.NewReportJob("user-1", models.ReportParams{
		Days:               30,
		Format:             models.FormatExcel,
		DestinationChannel: "@technews",
	})
	require.NoError(t, store.Create(ctx, other))

	found, err := store.FindRecent(ctx, first.Fingerprint, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, found, 2)

	// Newest first
	assert.Equal(t, second.ID, found[0].ID)
	assert.Equal(t, first.ID, found[1].ID)

	// Outside the window nothing matches
	none, err := store.FindRecent(ctx, first.Fingerprint, -time.Minute)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// Interface compliance is part of the contract the orchestrator relies on
var _ interfaces.JobStore = (*JobStorage)(nil)
