package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/trendwatch/internal/models"
)

// JobStore is the durable record of report jobs. All mutation goes through
// UpdateIf, the conditional-update primitive that makes concurrent attempts
// on the same job safe without a separate lock manager.
type JobStore interface {
	// Create persists a new job record
	Create(ctx context.Context, job *models.ReportJob) error

	// Get returns the job or a NotFound error
	Get(ctx context.Context, jobID string) (*models.ReportJob, error)

	// UpdateIf applies mutate to the job only if its current state matches
	// expected, returning the updated record. Fails with Conflict when the
	// state differs, which callers treat as "another attempt already advanced
	// this job".
	UpdateIf(ctx context.Context, jobID string, expected models.JobState, mutate func(*models.ReportJob)) (*models.ReportJob, error)

	// FindRecent returns jobs with the given params fingerprint created
	// within the window, newest first. Used for duplicate-submission lookups.
	FindRecent(ctx context.Context, fingerprint string, window time.Duration) ([]*models.ReportJob, error)
}

// SettingsStore persists per-requester defaults
type SettingsStore interface {
	GetSettings(ctx context.Context, requesterID string) (*models.RequesterSettings, error)
	SaveSettings(ctx context.Context, settings *models.RequesterSettings) error
}

// ScheduleStore persists recurring report schedules
type ScheduleStore interface {
	SaveSchedule(ctx context.Context, schedule *models.ReportSchedule) error
	GetSchedule(ctx context.Context, scheduleID string) (*models.ReportSchedule, error)
	ListSchedules(ctx context.Context, enabledOnly bool) ([]*models.ReportSchedule, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
}

// StorageManager owns the database connection and hands out typed stores
type StorageManager interface {
	JobStore() JobStore
	SettingsStore() SettingsStore
	ScheduleStore() ScheduleStore
	Close() error
}
