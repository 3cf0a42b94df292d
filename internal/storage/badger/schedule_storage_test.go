package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/models"
)

func newTestSchedule() *models.ReportSchedule {
	return models.NewReportSchedule("user-1", "0 9 * * 1", models.ReportParams{
		Days:               7,
		Format:             models.FormatPDF,
		DestinationChannel: "@technews",
	})
}

func TestScheduleSaveAndGet(t *testing.T) {
	store := NewScheduleStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	schedule := newTestSchedule()
	require.NoError(t, store.SaveSchedule(ctx, schedule))

	loaded, err := store.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.CronExpr, loaded.CronExpr)
	assert.True(t, loaded.Enabled)
}

func TestScheduleSaveRejectsInvalid(t *testing.T) {
	store := NewScheduleStorage(newTestDB(t), arbor.NewLogger())

	schedule := newTestSchedule()
	schedule.CronExpr = "not a cron expression"

	err := store.SaveSchedule(context.Background(), schedule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron schedule")
}

func TestScheduleGetNotFound(t *testing.T) {
	store := NewScheduleStorage(newTestDB(t), arbor.NewLogger())

	schedule, err := store.GetSchedule(context.Background(), "sched_missing")
	assert.Nil(t, schedule)
	assert.True(t, models.IsCategory(err, models.ErrNotFound))
}

func TestListSchedulesEnabledOnly(t *testing.T) {
	store := NewScheduleStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	enabled := newTestSchedule()
	require.NoError(t, store.SaveSchedule(ctx, enabled))

	disabled := newTestSchedule()
	disabled.Enabled = false
	require.NoError(t, store.SaveSchedule(ctx, disabled))

	all, err := store.ListSchedules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := store.ListSchedules(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, enabled.ID, active[0].ID)
}

func TestDeleteScheduleIdempotent(t *testing.T) {
	store := NewScheduleStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	schedule := newTestSchedule()
	require.NoError(t, store.SaveSchedule(ctx, schedule))
	require.NoError(t, store.DeleteSchedule(ctx, schedule.ID))

	_, err := store.GetSchedule(ctx, schedule.ID)
	assert.True(t, models.IsCategory(err, models.ErrNotFound))

	// Deleting again is not an error
	assert.NoError(t, store.DeleteSchedule(ctx, schedule.ID))
}

func TestSettingsRoundTripAndDefaults(t *testing.T) {
	store := NewSettingsStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	// Unknown requester gets the built-in defaults
	defaults, err := store.GetSettings(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, models.FormatPDF, defaults.DefaultFormat)
	assert.Equal(t, 7, defaults.DefaultDays)

	saved := &models.RequesterSettings{
		RequesterID:    "new-user",
		DefaultFormat:  models.FormatExcel,
		DefaultDays:    30,
		DefaultChannel: "@mychannel",
	}
	require.NoError(t, store.SaveSettings(ctx, saved))

	loaded, err := store.GetSettings(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, models.FormatExcel, loaded.DefaultFormat)
	assert.Equal(t, 30, loaded.DefaultDays)
	assert.Equal(t, "@mychannel", loaded.DefaultChannel)
	assert.False(t, loaded.UpdatedAt.IsZero())
}
