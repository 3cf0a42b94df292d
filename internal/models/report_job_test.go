package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    JobState
		to      JobState
		allowed bool
	}{
		{"pending to fetching", JobStatePending, JobStateFetching, true},
		{"pending to failed", JobStatePending, JobStateFailed, true},
		{"pending to done", JobStatePending, JobStateDone, false},
		{"fetching to rendering", JobStateFetching, JobStateRendering, true},
		{"fetching to retrying", JobStateFetching, JobStateRetrying, true},
		{"fetching to done", JobStateFetching, JobStateDone, false},
		{"rendering to publishing", JobStateRendering, JobStatePublishing, true},
		{"rendering to retrying", JobStateRendering, JobStateRetrying, false},
		{"publishing to done", JobStatePublishing, JobStateDone, true},
		{"publishing to retrying", JobStatePublishing, JobStateRetrying, true},
		{"retrying to fetching", JobStateRetrying, JobStateFetching, true},
		{"retrying to publishing", JobStateRetrying, JobStatePublishing, true},
		{"retrying to done", JobStateRetrying, JobStateDone, false},
		{"done is terminal", JobStateDone, JobStatePending, false},
		{"failed is terminal", JobStateFailed, JobStateFetching, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestJobStateIsTerminal(t *testing.T) {
	assert.True(t, JobStateDone.IsTerminal())
	assert.True(t, JobStateFailed.IsTerminal())

	for _, state := range []JobState{JobStatePending, JobStateFetching, JobStateRendering, JobStatePublishing, JobStateRetrying} {
		assert.False(t, state.IsTerminal(), "state %s should not be terminal", state)
	}
}

func TestNewReportJob(t *testing.T) {
	params := ReportParams{
		Days:               7,
		Format:             FormatPDF,
		DestinationChannel: "@technews",
		Strict:             true,
	}

	job := NewReportJob("user-1", params)

	assert.NotEmpty(t, job.ID)
	assert.Contains(t, job.ID, "job_")
	assert.Equal(t, "user-1", job.RequestedBy)
	assert.Equal(t, JobStatePending, job.State)
	assert.Equal(t, params.Fingerprint(), job.Fingerprint)
	assert.Equal(t, 0, job.FetchAttempts)
	assert.Equal(t, 0, job.PublishAttempts)
	assert.True(t, job.Strict)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, params, job.Params())

	other := NewReportJob("user-1", params)
	assert.NotEqual(t, job.ID, other.ID)
}

func TestFingerprintStability(t *testing.T) {
	a := ReportParams{Days: 7, Format: FormatPDF, DestinationChannel: "@technews"}
	b := ReportParams{Days: 7, Format: FormatPDF, DestinationChannel: "@technews", Strict: true}
	c := ReportParams{Days: 30, Format: FormatPDF, DestinationChannel: "@technews"}

	// Strict does not affect identity of the logical request
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, IsValidFormat(FormatPDF))
	assert.True(t, IsValidFormat(FormatExcel))
	assert.True(t, IsValidFormat(FormatHTML))
	assert.False(t, IsValidFormat(ReportFormat("docx")))
	assert.False(t, IsValidFormat(ReportFormat("")))
}

func TestSnapshotIsCopy(t *testing.T) {
	job := NewReportJob("user-1", ReportParams{Days: 7, Format: FormatHTML, DestinationChannel: "@technews"})

	snapshot := job.Snapshot()
	snapshot.State = JobStateDone

	assert.Equal(t, JobStatePending, job.State)
}

func TestPipelineErrorCategory(t *testing.T) {
	base := NewPipelineError(ErrUpstreamUnavailable, "connect refused")
	wrapped := fmt.Errorf("fetch attempt 2: %w", base)

	assert.Equal(t, ErrUpstreamUnavailable, CategoryOf(base))
	assert.Equal(t, ErrUpstreamUnavailable, CategoryOf(wrapped))
	assert.True(t, IsCategory(wrapped, ErrUpstreamUnavailable))
	assert.False(t, IsCategory(wrapped, ErrTimeout))

	assert.Equal(t, ErrorCategory(""), CategoryOf(errors.New("plain")))
	assert.Equal(t, ErrorCategory(""), CategoryOf(nil))
}

func TestWrapPipelineErrorUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapPipelineError(ErrTransientDelivery, cause, "send failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transient_delivery_error")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestErrorCategoryRetryable(t *testing.T) {
	retryable := []ErrorCategory{ErrUpstreamUnavailable, ErrTransientDelivery}
	terminal := []ErrorCategory{
		ErrInvalidParameter, ErrRender, ErrNoPostPermission,
		ErrInvalidDestination, ErrConflict, ErrTimeout, ErrNotFound, ErrCancelled,
	}

	for _, c := range retryable {
		assert.True(t, c.IsRetryable(), "category %s should be retryable", c)
	}
	for _, c := range terminal {
		assert.False(t, c.IsRetryable(), "category %s should not be retryable", c)
	}
}
