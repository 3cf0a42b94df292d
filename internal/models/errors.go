package models

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies pipeline failures. Categories drive the
// orchestrator's retry decisions and the plain-language message surfaced to
// the requester.
type ErrorCategory string

const (
	ErrInvalidParameter    ErrorCategory = "invalid_parameter"
	ErrUpstreamUnavailable ErrorCategory = "upstream_unavailable"
	ErrRender              ErrorCategory = "render_error"
	ErrNoPostPermission    ErrorCategory = "no_post_permission"
	ErrInvalidDestination  ErrorCategory = "invalid_destination"
	ErrTransientDelivery   ErrorCategory = "transient_delivery_error"
	ErrConflict            ErrorCategory = "conflict"
	ErrTimeout             ErrorCategory = "timeout"
	ErrNotFound            ErrorCategory = "not_found"
	ErrCancelled           ErrorCategory = "cancelled"
)

// PipelineError is a categorized error carried through the pipeline.
// Raw upstream/renderer/publisher errors are wrapped into one of these at the
// component boundary and never propagate uncategorized past the orchestrator.
type PipelineError struct {
	Category ErrorCategory
	Message  string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a categorized error with a formatted message
func NewPipelineError(category ErrorCategory, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// WrapPipelineError wraps an underlying error with a category
func WrapPipelineError(category ErrorCategory, err error, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Err:      err,
	}
}

// CategoryOf extracts the error category, or empty string for uncategorized errors
func CategoryOf(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, category ErrorCategory) bool {
	return CategoryOf(err) == category
}

// IsRetryable reports whether a failure with this category may be retried.
// Render failures are deterministic and permission/destination failures
// cannot be fixed by retrying.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case ErrUpstreamUnavailable, ErrTransientDelivery:
		return true
	default:
		return false
	}
}

// UserMessage returns the plain-language description surfaced by the front end
func (c ErrorCategory) UserMessage() string {
	switch c {
	case ErrInvalidParameter:
		return "Request parameters are invalid"
	case ErrUpstreamUnavailable:
		return "Trend analysis service is unavailable"
	case ErrRender:
		return "Report could not be rendered"
	case ErrNoPostPermission:
		return "Bot has no permission to post to the channel"
	case ErrInvalidDestination:
		return "Destination channel does not exist"
	case ErrTransientDelivery:
		return "Report delivery failed temporarily"
	case ErrTimeout:
		return "Report generation took too long"
	case ErrNotFound:
		return "Report job not found"
	case ErrCancelled:
		return "Report job was cancelled"
	default:
		return "Report generation failed"
	}
}
