package interfaces

import (
	"context"

	"github.com/ternarybob/trendwatch/internal/models"
)

// Orchestrator drives report jobs through fetch, render and publish,
// applying the retry policy and recording every state transition in the
// job store.
type Orchestrator interface {
	// Submit validates params, creates a durable job and starts processing
	// it asynchronously. Returns the job ID, or the ID of a recent
	// in-flight job with identical params (best-effort dedup). Fails with
	// InvalidParameter before any state is created.
	Submit(ctx context.Context, requestedBy string, params models.ReportParams) (string, error)

	// GetStatus returns a snapshot of the job or a NotFound error
	GetStatus(ctx context.Context, jobID string) (*models.ReportJob, error)

	// Cancel marks a PENDING or RETRYING job failed with Cancelled.
	// Best-effort: it cannot interrupt an attempt already in flight, it only
	// prevents the next one.
	Cancel(ctx context.Context, jobID string) error
}

// SchedulerService triggers orchestrator submissions on a cadence
type SchedulerService interface {
	Start() error
	Stop()
	AddSchedule(ctx context.Context, schedule *models.ReportSchedule) error
	RemoveSchedule(ctx context.Context, scheduleID string) error
	SetScheduleEnabled(ctx context.Context, scheduleID string, enabled bool) error
}
