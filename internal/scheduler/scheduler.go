// -----------------------------------------------------------------------
// Scheduler Service - recurring report submissions driven by cron
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
)

// Service implements interfaces.SchedulerService. Schedules are persisted in
// the schedule store and registered with a cron runner; each tick submits a
// report job through the orchestrator, which applies its own dedup so an
// overlapping tick cannot double-publish.
type Service struct {
	orchestrator interfaces.Orchestrator
	schedules    interfaces.ScheduleStore
	cron         *cron.Cron
	logger       arbor.ILogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a scheduler service
func NewService(orchestrator interfaces.Orchestrator, schedules interfaces.ScheduleStore, logger arbor.ILogger) *Service {
	return &Service{
		orchestrator: orchestrator,
		schedules:    schedules,
		cron:         cron.New(),
		logger:       logger,
		entries:      make(map[string]cron.EntryID),
	}
}

// Start registers all enabled persisted schedules and begins the cron runner
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	stored, err := s.schedules.ListSchedules(context.Background(), true)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	registered := 0
	for _, schedule := range stored {
		if err := s.register(schedule); err != nil {
			s.logger.Error().Err(err).
				Str("schedule_id", schedule.ID).
				Str("cron_expr", schedule.CronExpr).
				Msg("Failed to register schedule, skipping")
			continue
		}
		registered++
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("count", registered).Msg("Scheduler started")
	return nil
}

// Stop halts the cron runner and waits for in-flight ticks
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
}

// AddSchedule persists a new schedule and registers it if enabled
func (s *Service) AddSchedule(ctx context.Context, schedule *models.ReportSchedule) error {
	if err := schedule.Validate(); err != nil {
		return models.WrapPipelineError(models.ErrInvalidParameter, err, "invalid schedule")
	}

	if err := s.schedules.SaveSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if schedule.Enabled {
		if err := s.register(schedule); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("schedule_id", schedule.ID).
		Str("cron_expr", schedule.CronExpr).
		Bool("enabled", schedule.Enabled).
		Msg("Schedule added")

	return nil
}

// RemoveSchedule unregisters and deletes a schedule
func (s *Service) RemoveSchedule(ctx context.Context, scheduleID string) error {
	s.mu.Lock()
	s.unregister(scheduleID)
	s.mu.Unlock()

	if err := s.schedules.DeleteSchedule(ctx, scheduleID); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	s.logger.Info().Str("schedule_id", scheduleID).Msg("Schedule removed")
	return nil
}

// SetScheduleEnabled toggles a schedule, persisting the new state
func (s *Service) SetScheduleEnabled(ctx context.Context, scheduleID string, enabled bool) error {
	schedule, err := s.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}

	if schedule.Enabled == enabled {
		return nil
	}

	schedule.Enabled = enabled
	if err := s.schedules.SaveSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("failed to persist schedule state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled {
		if err := s.register(schedule); err != nil {
			return err
		}
	} else {
		s.unregister(scheduleID)
	}

	s.logger.Info().
		Str("schedule_id", scheduleID).
		Bool("enabled", enabled).
		Msg("Schedule state changed")

	return nil
}

// register adds a cron entry for a schedule. Caller holds s.mu.
func (s *Service) register(schedule *models.ReportSchedule) error {
	if _, exists := s.entries[schedule.ID]; exists {
		return nil
	}

	// Local copy to avoid closure capture of the loop variable
	sched := *schedule
	entryID, err := s.cron.AddFunc(schedule.CronExpr, func() {
		s.runTick(&sched)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron entry: %w", err)
	}

	s.entries[schedule.ID] = entryID
	return nil
}

// unregister removes a cron entry if present. Caller holds s.mu.
func (s *Service) unregister(scheduleID string) {
	if entryID, exists := s.entries[scheduleID]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, scheduleID)
	}
}

// runTick submits one report job for a schedule firing
func (s *Service) runTick(schedule *models.ReportSchedule) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("schedule_id", schedule.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in schedule tick")
		}
	}()

	jobID, err := s.orchestrator.Submit(context.Background(), schedule.RequestedBy, schedule.Params())
	if err != nil {
		s.logger.Error().Err(err).
			Str("schedule_id", schedule.ID).
			Msg("Scheduled submission failed")
		return
	}

	s.logger.Info().
		Str("schedule_id", schedule.ID).
		Str("job_id", jobID).
		Msg("Scheduled report submitted")
}
