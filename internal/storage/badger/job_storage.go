package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStore interface for Badger.
//
// BadgerHold has no atomic field-level compare-and-swap, so UpdateIf
// serializes read-modify-write through a mutex. The pipeline is
// single-process (see the concurrency model), which makes this sufficient to
// guarantee at most one active attempt per job.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStore {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Store().Insert(job.ID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return models.NewPipelineError(models.ErrConflict, "job %s already exists", job.ID)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *JobStorage) Get(ctx context.Context, jobID string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// UpdateIf applies mutate only when the stored state matches expected.
// A state mismatch means another attempt already advanced the job; callers
// abort their own attempt on Conflict.
func (s *JobStorage) UpdateIf(ctx context.Context, jobID string, expected models.JobState, mutate func(*models.ReportJob)) (*models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.ReportJob
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.NewPipelineError(models.ErrNotFound, "job not found: %s", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if job.State != expected {
		return nil, models.NewPipelineError(models.ErrConflict,
			"job %s is %s, expected %s", jobID, job.State, expected)
	}

	mutate(&job)
	job.UpdatedAt = time.Now()

	if !expected.CanTransitionTo(job.State) && job.State != expected {
		return nil, fmt.Errorf("illegal state transition %s -> %s for job %s", expected, job.State, jobID)
	}

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) FindRecent(ctx context.Context, fingerprint string, window time.Duration) ([]*models.ReportJob, error) {
	cutoff := time.Now().Add(-window)

	var jobs []models.ReportJob
	query := badgerhold.Where("Fingerprint").Eq(fingerprint).Index("Fingerprint").
		And("CreatedAt").Ge(cutoff).
		SortBy("CreatedAt").Reverse()
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to find recent jobs: %w", err)
	}

	result := make([]*models.ReportJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}
