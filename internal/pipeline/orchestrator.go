// -----------------------------------------------------------------------
// Pipeline Orchestrator - drives report jobs through fetch/render/publish
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/common"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
	"github.com/ternarybob/trendwatch/internal/renderer"
)

// Orchestrator implements interfaces.Orchestrator. Jobs run as independent
// goroutines; at most one active attempt per job is guaranteed by the job
// store's conditional update, not by any lock held here.
type Orchestrator struct {
	jobs      interfaces.JobStore
	settings  interfaces.SettingsStore
	upstream  interfaces.UpstreamClient
	renderer  interfaces.Renderer
	publisher interfaces.Publisher
	notifier  interfaces.AdminNotifier
	logger    arbor.ILogger
	validate  *validator.Validate

	artifactsDir string
	maxDays      int
	strict       bool

	maxFetchAttempts   int
	maxPublishAttempts int
	backoffBase        time.Duration
	backoffCeiling     time.Duration
	jobTimeout         time.Duration
	dedupWindow        time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Compile-time assertion
var _ interfaces.Orchestrator = (*Orchestrator)(nil)

// NewOrchestrator wires the pipeline from configuration and collaborators
func NewOrchestrator(
	config *common.Config,
	jobs interfaces.JobStore,
	settings interfaces.SettingsStore,
	upstream interfaces.UpstreamClient,
	render interfaces.Renderer,
	publish interfaces.Publisher,
	notifier interfaces.AdminNotifier,
	logger arbor.ILogger,
) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		jobs:               jobs,
		settings:           settings,
		upstream:           upstream,
		renderer:           render,
		publisher:          publish,
		notifier:           notifier,
		logger:             logger,
		validate:           validator.New(),
		artifactsDir:       config.Storage.Artifacts,
		maxDays:            config.Upstream.MaxDays,
		strict:             config.Upstream.Strict,
		maxFetchAttempts:   config.Pipeline.MaxFetchAttempts,
		maxPublishAttempts: config.Pipeline.MaxPublishAttempts,
		backoffBase:        common.ParseDuration(config.Pipeline.BackoffBase, 2*time.Second),
		backoffCeiling:     common.ParseDuration(config.Pipeline.BackoffCeiling, 30*time.Second),
		jobTimeout:         common.ParseDuration(config.Pipeline.JobTimeout, 10*time.Minute),
		dedupWindow:        common.ParseDuration(config.Pipeline.DedupWindow, 5*time.Minute),
		ctx:                ctx,
		cancel:             cancel,
	}
}

// Submit validates params, creates a durable job and starts processing it.
// Returns the ID of a recent non-terminal job with identical params instead
// of creating a duplicate.
func (o *Orchestrator) Submit(ctx context.Context, requestedBy string, params models.ReportParams) (string, error) {
	if requestedBy == "" {
		return "", models.NewPipelineError(models.ErrInvalidParameter, "requested_by is required")
	}
	// Rejected before settings are consulted: requester defaults fill an
	// unset format or channel but never repair an invalid analysis window
	if params.Days <= 0 {
		return "", models.NewPipelineError(models.ErrInvalidParameter, "days must be positive, got %d", params.Days)
	}

	if o.settings != nil {
		settings, err := o.settings.GetSettings(ctx, requestedBy)
		if err != nil {
			o.logger.Warn().Err(err).Str("requested_by", requestedBy).Msg("Failed to load requester settings, using request as-is")
		} else {
			params = settings.ApplyDefaults(params)
		}
	}
	if o.strict {
		params.Strict = true
	}

	if err := o.validate.Struct(params); err != nil {
		return "", models.WrapPipelineError(models.ErrInvalidParameter, err, "invalid report params")
	}
	if params.Days > o.maxDays {
		return "", models.NewPipelineError(models.ErrInvalidParameter, "days must be <= %d, got %d", o.maxDays, params.Days)
	}

	// Best-effort dedup: an identical in-flight request is returned instead
	// of creating a second job. Terminal jobs never block re-submission.
	recent, err := o.jobs.FindRecent(ctx, params.Fingerprint(), o.dedupWindow)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Dedup lookup failed, continuing with submission")
	} else {
		for _, existing := range recent {
			if !existing.State.IsTerminal() {
				o.logger.Info().
					Str("job_id", existing.ID).
					Str("fingerprint", params.Fingerprint()).
					Msg("Duplicate submission, returning in-flight job")
				return existing.ID, nil
			}
		}
	}

	job := models.NewReportJob(requestedBy, params)
	if err := o.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("requested_by", requestedBy).
		Int("days", params.Days).
		Str("format", string(params.Format)).
		Msg("Report job submitted")

	o.wg.Add(1)
	go o.run(job.ID)

	return job.ID, nil
}

// GetStatus returns a snapshot of the job record
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*models.ReportJob, error) {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	snapshot := job.Snapshot()
	return &snapshot, nil
}

// Cancel marks a PENDING or RETRYING job failed with Cancelled. A job whose
// current attempt is already in flight cannot be interrupted; cancellation
// then fails with Conflict and the attempt runs to completion.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	markCancelled := func(job *models.ReportJob) {
		job.State = models.JobStateFailed
		job.ErrorCategory = models.ErrCancelled
		job.LastError = "cancelled by requester"
	}

	for _, state := range []models.JobState{models.JobStatePending, models.JobStateRetrying} {
		job, err := o.jobs.UpdateIf(ctx, jobID, state, markCancelled)
		if err == nil {
			o.logger.Info().Str("job_id", jobID).Str("from_state", string(state)).Msg("Report job cancelled")
			o.notifyFailed(job)
			return nil
		}
		if !models.IsCategory(err, models.ErrConflict) {
			return err
		}
	}

	return models.NewPipelineError(models.ErrConflict,
		"job %s is not cancellable in its current state", jobID)
}

// Stop cancels in-flight processing and waits for job goroutines to settle
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

// run drives one job to a terminal state
func (o *Orchestrator) run(jobID string) {
	defer o.wg.Done()

	// Total wall-clock ceiling across all attempts
	ctx, cancel := context.WithTimeout(o.ctx, o.jobTimeout)
	defer cancel()

	job, err := o.jobs.UpdateIf(ctx, jobID, models.JobStatePending, func(j *models.ReportJob) {
		j.State = models.JobStateFetching
		j.FetchAttempts = 1
	})
	if err != nil {
		o.abort(jobID, "start", err)
		return
	}

	dataset, ok := o.fetchPhase(ctx, job)
	if !ok {
		return
	}

	if _, err := o.jobs.UpdateIf(ctx, jobID, models.JobStateFetching, func(j *models.ReportJob) {
		j.State = models.JobStateRendering
	}); err != nil {
		o.abort(jobID, "fetch->render", err)
		return
	}

	artifact, err := o.renderer.Render(dataset, job.Format)
	if err != nil {
		// Render failures indicate a deterministic input/format bug, never retried
		o.failJob(jobID, models.JobStateRendering, models.ErrRender, err)
		return
	}

	if _, err := o.jobs.UpdateIf(ctx, jobID, models.JobStateRendering, func(j *models.ReportJob) {
		j.State = models.JobStatePublishing
		j.PublishAttempts = 1
	}); err != nil {
		o.abort(jobID, "render->publish", err)
		return
	}

	o.publishPhase(ctx, job, dataset, artifact)
}

// fetchPhase runs the bounded fetch/retry loop. Returns the dataset, or
// false after recording a terminal state.
func (o *Orchestrator) fetchPhase(ctx context.Context, job *models.ReportJob) (*models.TrendDataset, bool) {
	attempts := 1
	for {
		if ctx.Err() != nil {
			o.failJob(job.ID, models.JobStateFetching, models.ErrTimeout, ctx.Err())
			return nil, false
		}

		dataset, err := o.upstream.Fetch(ctx, job.Days, interfaces.FetchOptions{Strict: job.Strict})
		if err == nil {
			return dataset, true
		}

		category := models.CategoryOf(err)
		if category == "" {
			category = models.ErrUpstreamUnavailable
		}
		if !category.IsRetryable() || attempts >= o.maxFetchAttempts {
			o.failJob(job.ID, models.JobStateFetching, category, err)
			return nil, false
		}

		if _, uerr := o.jobs.UpdateIf(ctx, job.ID, models.JobStateFetching, func(j *models.ReportJob) {
			j.State = models.JobStateRetrying
		}); uerr != nil {
			o.abort(job.ID, "fetch->retrying", uerr)
			return nil, false
		}

		if serr := o.sleepBackoff(ctx, attempts); serr != nil {
			o.failJob(job.ID, models.JobStateRetrying, models.ErrTimeout, serr)
			return nil, false
		}

		// A Cancel between retries wins this conditional update; abort quietly
		attempts++
		if _, uerr := o.jobs.UpdateIf(ctx, job.ID, models.JobStateRetrying, func(j *models.ReportJob) {
			j.State = models.JobStateFetching
			j.FetchAttempts = attempts
		}); uerr != nil {
			o.abort(job.ID, "retrying->fetch", uerr)
			return nil, false
		}
	}
}

// publishPhase runs the bounded publish/retry loop and finalizes the job
func (o *Orchestrator) publishPhase(ctx context.Context, job *models.ReportJob, dataset *models.TrendDataset, artifact *models.ReportArtifact) {
	summary := renderer.BuildSummaryCaption(dataset)

	attempts := 1
	for {
		if ctx.Err() != nil {
			o.failJob(job.ID, models.JobStatePublishing, models.ErrTimeout, ctx.Err())
			return
		}

		receipt, err := o.publisher.Publish(ctx, job.DestinationChannel, artifact, summary)
		if err == nil {
			o.finishJob(ctx, job, artifact, receipt)
			return
		}

		category := models.CategoryOf(err)
		if category == "" {
			category = models.ErrTransientDelivery
		}
		if !category.IsRetryable() || attempts >= o.maxPublishAttempts {
			// Permission and bad-channel errors are terminal immediately;
			// retrying cannot fix a missing admin grant
			o.failJob(job.ID, models.JobStatePublishing, category, err)
			return
		}

		if _, uerr := o.jobs.UpdateIf(ctx, job.ID, models.JobStatePublishing, func(j *models.ReportJob) {
			j.State = models.JobStateRetrying
		}); uerr != nil {
			o.abort(job.ID, "publish->retrying", uerr)
			return
		}

		if serr := o.sleepBackoff(ctx, attempts); serr != nil {
			o.failJob(job.ID, models.JobStateRetrying, models.ErrTimeout, serr)
			return
		}

		attempts++
		if _, uerr := o.jobs.UpdateIf(ctx, job.ID, models.JobStateRetrying, func(j *models.ReportJob) {
			j.State = models.JobStatePublishing
			j.PublishAttempts = attempts
		}); uerr != nil {
			o.abort(job.ID, "retrying->publish", uerr)
			return
		}
	}
}

// finishJob persists the artifact and records DONE with the result URI
func (o *Orchestrator) finishJob(ctx context.Context, job *models.ReportJob, artifact *models.ReportArtifact, receipt *interfaces.DeliveryReceipt) {
	resultURI, err := o.writeArtifact(job, artifact)
	if err != nil {
		// Delivery already succeeded; losing the local copy is not a job failure
		o.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist artifact copy")
	}

	if _, err := o.jobs.UpdateIf(ctx, job.ID, models.JobStatePublishing, func(j *models.ReportJob) {
		j.State = models.JobStateDone
		j.ResultURI = resultURI
	}); err != nil {
		o.abort(job.ID, "publish->done", err)
		return
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("result_uri", resultURI).
		Str("message_id", receipt.MessageID).
		Bool("is_stub", artifact.IsStub).
		Msg("Report job completed")
}

// writeArtifact persists the rendered bytes under the artifacts directory
func (o *Orchestrator) writeArtifact(job *models.ReportJob, artifact *models.ReportArtifact) (string, error) {
	if err := os.MkdirAll(o.artifactsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	path := filepath.Join(o.artifactsDir, fmt.Sprintf("%s.%s", job.ID, artifact.FileExtension()))
	if err := os.WriteFile(path, artifact.Bytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// failJob records a terminal FAILED state and notifies the admin channel
func (o *Orchestrator) failJob(jobID string, from models.JobState, category models.ErrorCategory, cause error) {
	job, err := o.jobs.UpdateIf(context.Background(), jobID, from, func(j *models.ReportJob) {
		j.State = models.JobStateFailed
		j.ErrorCategory = category
		j.LastError = cause.Error()
	})
	if err != nil {
		o.abort(jobID, "fail", err)
		return
	}

	o.logger.Warn().
		Str("job_id", jobID).
		Str("category", string(category)).
		Str("error", cause.Error()).
		Msg("Report job failed")

	o.notifyFailed(job)
}

func (o *Orchestrator) notifyFailed(job *models.ReportJob) {
	if o.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	o.notifier.NotifyJobFailed(notifyCtx, job)
}

// abort handles a conditional-update conflict: another attempt (or a cancel)
// already advanced this job, so this goroutine stands down with no side
// effects beyond logging.
func (o *Orchestrator) abort(jobID, transition string, err error) {
	if models.IsCategory(err, models.ErrConflict) {
		o.logger.Debug().
			Str("job_id", jobID).
			Str("transition", transition).
			Msg("Job already advanced elsewhere, aborting redundant attempt")
		return
	}
	o.logger.Error().Err(err).
		Str("job_id", jobID).
		Str("transition", transition).
		Msg("Job state update failed")
}

// sleepBackoff waits base*2^(attempt-1) capped at the ceiling, honoring
// context cancellation
func (o *Orchestrator) sleepBackoff(ctx context.Context, attempt int) error {
	delay := o.backoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= o.backoffCeiling {
			delay = o.backoffCeiling
			break
		}
	}
	if delay > o.backoffCeiling {
		delay = o.backoffCeiling
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
