package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScheduleStorage implements the ScheduleStore interface for Badger
type ScheduleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScheduleStorage creates a new ScheduleStorage instance
func NewScheduleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScheduleStore {
	return &ScheduleStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ScheduleStorage) SaveSchedule(ctx context.Context, schedule *models.ReportSchedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	schedule.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(schedule.ID, schedule); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) GetSchedule(ctx context.Context, scheduleID string) (*models.ReportSchedule, error) {
	var schedule models.ReportSchedule
	if err := s.db.Store().Get(scheduleID, &schedule); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "schedule not found: %s", scheduleID)
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

func (s *ScheduleStorage) ListSchedules(ctx context.Context, enabledOnly bool) ([]*models.ReportSchedule, error) {
	query := badgerhold.Where("ID").Ne("")
	if enabledOnly {
		query = query.And("Enabled").Eq(true)
	}
	query = query.SortBy("CreatedAt")

	var schedules []models.ReportSchedule
	if err := s.db.Store().Find(&schedules, query); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	result := make([]*models.ReportSchedule, len(schedules))
	for i := range schedules {
		result[i] = &schedules[i]
	}
	return result, nil
}

func (s *ScheduleStorage) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if err := s.db.Store().Delete(scheduleID, &models.ReportSchedule{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}
