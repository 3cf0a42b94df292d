package models

import "time"

// RequesterSettings hold per-requester defaults applied to report requests
// that leave a parameter unset
type RequesterSettings struct {
	RequesterID    string       `json:"requester_id" badgerhold:"key"`
	DefaultFormat  ReportFormat `json:"default_format"`
	DefaultDays    int          `json:"default_days"`
	DefaultChannel string       `json:"default_channel"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// DefaultRequesterSettings returns the settings used when a requester has
// never saved any
func DefaultRequesterSettings(requesterID string) *RequesterSettings {
	return &RequesterSettings{
		RequesterID:   requesterID,
		DefaultFormat: FormatPDF,
		DefaultDays:   7,
		UpdatedAt:     time.Now(),
	}
}

// ApplyDefaults fills an unset format and channel from the requester's
// settings. Days is never filled here: a zero days value is an invalid
// request, not an unset one, and must be rejected rather than repaired.
// Front ends that can tell "flag not given" apart from "zero" resolve
// DefaultDays themselves before submitting.
func (s *RequesterSettings) ApplyDefaults(params ReportParams) ReportParams {
	if params.Format == "" {
		params.Format = s.DefaultFormat
	}
	if params.DestinationChannel == "" {
		params.DestinationChannel = s.DefaultChannel
	}
	return params
}
