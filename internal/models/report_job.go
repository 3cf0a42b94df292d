// -----------------------------------------------------------------------
// Report Job - durable unit of work for the report pipeline
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"

	"github.com/ternarybob/trendwatch/internal/common"
)

// JobState represents the state of a report job
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateFetching   JobState = "fetching"
	JobStateRendering  JobState = "rendering"
	JobStatePublishing JobState = "publishing"
	JobStateRetrying   JobState = "retrying"
	JobStateDone       JobState = "done"
	JobStateFailed     JobState = "failed"
)

// IsTerminal returns true for states from which no further transition occurs
func (s JobState) IsTerminal() bool {
	return s == JobStateDone || s == JobStateFailed
}

// validTransitions defines the forward-only state machine. RETRYING loops
// back into FETCHING or PUBLISHING depending on which phase failed.
var validTransitions = map[JobState][]JobState{
	JobStatePending:    {JobStateFetching, JobStateFailed},
	JobStateFetching:   {JobStateRendering, JobStateRetrying, JobStateFailed},
	JobStateRendering:  {JobStatePublishing, JobStateFailed},
	JobStatePublishing: {JobStateDone, JobStateRetrying, JobStateFailed},
	JobStateRetrying:   {JobStateFetching, JobStatePublishing, JobStateFailed},
	JobStateDone:       {},
	JobStateFailed:     {},
}

// CanTransitionTo reports whether the state machine permits moving to next
func (s JobState) CanTransitionTo(next JobState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReportFormat is the requested artifact output format
type ReportFormat string

const (
	FormatPDF   ReportFormat = "pdf"
	FormatExcel ReportFormat = "excel"
	FormatHTML  ReportFormat = "html"
)

// IsValidFormat checks if a given format is one of the supported constants
func IsValidFormat(format ReportFormat) bool {
	switch format {
	case FormatPDF, FormatExcel, FormatHTML:
		return true
	default:
		return false
	}
}

// ReportParams are the validated inputs of a report request. Validation runs
// in the orchestrator regardless of any front-end checks.
type ReportParams struct {
	Days               int          `json:"days" validate:"required,gt=0"`
	Format             ReportFormat `json:"format" validate:"required,oneof=pdf excel html"`
	DestinationChannel string       `json:"destination_channel" validate:"required"`
	Strict             bool         `json:"strict,omitempty"` // Fail instead of stub fallback on upstream outage
}

// Fingerprint returns a stable key identifying the logical request, used for
// duplicate-submission lookups
func (p ReportParams) Fingerprint() string {
	return fmt.Sprintf("%d|%s|%s", p.Days, p.Format, p.DestinationChannel)
}

// ReportJob is the durable record of one report request. Created on
// submission, mutated only by the orchestrator through the job store's
// conditional update, retained after completion for audit and dedup.
type ReportJob struct {
	ID                 string       `json:"id" badgerhold:"key"`
	RequestedBy        string       `json:"requested_by"`
	Days               int          `json:"days"`
	Format             ReportFormat `json:"format"`
	DestinationChannel string       `json:"destination_channel"`
	Strict             bool         `json:"strict"`
	Fingerprint        string       `json:"fingerprint" badgerholdIndex:"Fingerprint"`
	State              JobState     `json:"state"`
	FetchAttempts      int          `json:"fetch_attempts"`
	PublishAttempts    int          `json:"publish_attempts"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	ResultURI          string       `json:"result_uri,omitempty"` // Set only on DONE
	LastError          string       `json:"last_error,omitempty"` // Set only on failure states
	ErrorCategory      ErrorCategory `json:"error_category,omitempty"`
}

// NewReportJob creates a pending job from validated params
func NewReportJob(requestedBy string, params ReportParams) *ReportJob {
	now := time.Now()
	return &ReportJob{
		ID:                 common.NewJobID(),
		RequestedBy:        requestedBy,
		Days:               params.Days,
		Format:             params.Format,
		DestinationChannel: params.DestinationChannel,
		Strict:             params.Strict,
		Fingerprint:        params.Fingerprint(),
		State:              JobStatePending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Params reconstructs the request parameters from the persisted record
func (j *ReportJob) Params() ReportParams {
	return ReportParams{
		Days:               j.Days,
		Format:             j.Format,
		DestinationChannel: j.DestinationChannel,
		Strict:             j.Strict,
	}
}

// Snapshot returns a copy for status queries so callers cannot mutate the
// stored record
func (j *ReportJob) Snapshot() ReportJob {
	return *j
}
