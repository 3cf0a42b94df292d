package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/models"
)

// fakeOrchestrator records submissions
type fakeOrchestrator struct {
	mu      sync.Mutex
	submits []models.ReportParams
	err     error
}

func (f *fakeOrchestrator) Submit(ctx context.Context, requestedBy string, params models.ReportParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.submits = append(f.submits, params)
	return "job_test", nil
}

func (f *fakeOrchestrator) GetStatus(ctx context.Context, jobID string) (*models.ReportJob, error) {
	return nil, models.NewPipelineError(models.ErrNotFound, "job not found: %s", jobID)
}

func (f *fakeOrchestrator) Cancel(ctx context.Context, jobID string) error { return nil }

func (f *fakeOrchestrator) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

// fakeScheduleStore is an in-memory ScheduleStore
type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules map[string]models.ReportSchedule
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{schedules: make(map[string]models.ReportSchedule)}
}

func (f *fakeScheduleStore) SaveSchedule(ctx context.Context, schedule *models.ReportSchedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[schedule.ID] = *schedule
	return nil
}

func (f *fakeScheduleStore) GetSchedule(ctx context.Context, scheduleID string) (*models.ReportSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	schedule, exists := f.schedules[scheduleID]
	if !exists {
		return nil, models.NewPipelineError(models.ErrNotFound, "schedule not found: %s", scheduleID)
	}
	return &schedule, nil
}

func (f *fakeScheduleStore) ListSchedules(ctx context.Context, enabledOnly bool) ([]*models.ReportSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.ReportSchedule
	for _, schedule := range f.schedules {
		if enabledOnly && !schedule.Enabled {
			continue
		}
		s := schedule
		result = append(result, &s)
	}
	return result, nil
}

func (f *fakeScheduleStore) DeleteSchedule(ctx context.Context, scheduleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.schedules, scheduleID)
	return nil
}

func testSchedule() *models.ReportSchedule {
	return models.NewReportSchedule("user-1", "0 9 * * 1", models.ReportParams{
		Days:               7,
		Format:             models.FormatPDF,
		DestinationChannel: "@technews",
	})
}

func TestStartRegistersEnabledSchedules(t *testing.T) {
	store := newFakeScheduleStore()
	ctx := context.Background()

	enabled := testSchedule()
	require.NoError(t, store.SaveSchedule(ctx, enabled))

	disabled := testSchedule()
	disabled.Enabled = false
	require.NoError(t, store.SaveSchedule(ctx, disabled))

	service := NewService(&fakeOrchestrator{}, store, arbor.NewLogger())
	require.NoError(t, service.Start())
	defer service.Stop()

	assert.Len(t, service.entries, 1)
	_, registered := service.entries[enabled.ID]
	assert.True(t, registered)

	assert.Error(t, service.Start(), "double start must fail")
}

func TestAddScheduleValidatesAndRegisters(t *testing.T) {
	store := newFakeScheduleStore()
	service := NewService(&fakeOrchestrator{}, store, arbor.NewLogger())
	require.NoError(t, service.Start())
	defer service.Stop()

	ctx := context.Background()

	schedule := testSchedule()
	require.NoError(t, service.AddSchedule(ctx, schedule))
	assert.Len(t, service.entries, 1)

	_, err := store.GetSchedule(ctx, schedule.ID)
	assert.NoError(t, err)

	bad := testSchedule()
	bad.CronExpr = "every tuesday"
	err = service.AddSchedule(ctx, bad)
	assert.True(t, models.IsCategory(err, models.ErrInvalidParameter))
	assert.Len(t, service.entries, 1)
}

func TestRemoveSchedule(t *testing.T) {
	store := newFakeScheduleStore()
	service := NewService(&fakeOrchestrator{}, store, arbor.NewLogger())
	require.NoError(t, service.Start())
	defer service.Stop()

	ctx := context.Background()
	schedule := testSchedule()
	require.NoError(t, service.AddSchedule(ctx, schedule))

	require.NoError(t, service.RemoveSchedule(ctx, schedule.ID))
	assert.Empty(t, service.entries)

	_, err := store.GetSchedule(ctx, schedule.ID)
	assert.True(t, models.IsCategory(err, models.ErrNotFound))
}

func TestSetScheduleEnabled(t *testing.T) {
	store := newFakeScheduleStore()
	service := NewService(&fakeOrchestrator{}, store, arbor.NewLogger())
	require.NoError(t, service.Start())
	defer service.Stop()

	ctx := context.Background()
	schedule := testSchedule()
	require.NoError(t, service.AddSchedule(ctx, schedule))

	require.NoError(t, service.SetScheduleEnabled(ctx, schedule.ID, false))
	assert.Empty(t, service.entries)

	stored, err := store.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)

	require.NoError(t, service.SetScheduleEnabled(ctx, schedule.ID, true))
	assert.Len(t, service.entries, 1)

	// Toggling to the current state is a no-op
	require.NoError(t, service.SetScheduleEnabled(ctx, schedule.ID, true))

	err = service.SetScheduleEnabled(ctx, "sched_missing", true)
	assert.True(t, models.IsCategory(err, models.ErrNotFound))
}

func TestRunTickSubmitsScheduleParams(t *testing.T) {
	orchestrator := &fakeOrchestrator{}
	service := NewService(orchestrator, newFakeScheduleStore(), arbor.NewLogger())

	schedule := testSchedule()
	service.runTick(schedule)

	require.Equal(t, 1, orchestrator.submitCount())
	assert.Equal(t, schedule.Params(), orchestrator.submits[0])
}

func TestRunTickSurvivesSubmitFailure(t *testing.T) {
	orchestrator := &fakeOrchestrator{err: errors.New("storage offline")}
	service := NewService(orchestrator, newFakeScheduleStore(), arbor.NewLogger())

	// Must not panic; failures are logged and the next tick tries again
	service.runTick(testSchedule())
	assert.Equal(t, 0, orchestrator.submitCount())
}
