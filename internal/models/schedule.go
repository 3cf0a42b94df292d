package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/trendwatch/internal/common"
)

// ReportSchedule is a persisted recurring report trigger. The scheduler
// registers enabled schedules as cron entries that submit jobs; it owns no
// other business logic.
type ReportSchedule struct {
	ID                 string       `json:"id" badgerhold:"key"`
	RequestedBy        string       `json:"requested_by"`
	CronExpr           string       `json:"cron_expr"` // Standard 5-field cron expression
	Days               int          `json:"days"`
	Format             ReportFormat `json:"format"`
	DestinationChannel string       `json:"destination_channel"`
	Enabled            bool         `json:"enabled"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// NewReportSchedule creates an enabled schedule
func NewReportSchedule(requestedBy, cronExpr string, params ReportParams) *ReportSchedule {
	now := time.Now()
	return &ReportSchedule{
		ID:                 common.NewScheduleID(),
		RequestedBy:        requestedBy,
		CronExpr:           cronExpr,
		Days:               params.Days,
		Format:             params.Format,
		DestinationChannel: params.DestinationChannel,
		Enabled:            true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Params returns the report parameters this schedule submits
func (s *ReportSchedule) Params() ReportParams {
	return ReportParams{
		Days:               s.Days,
		Format:             s.Format,
		DestinationChannel: s.DestinationChannel,
	}
}

// Validate validates the schedule.
// CronExpr is always required regardless of Enabled status so a disabled
// schedule can be re-enabled without repair.
func (s *ReportSchedule) Validate() error {
	if s.ID == "" {
		return errors.New("schedule ID is required")
	}
	if s.RequestedBy == "" {
		return errors.New("schedule requester is required")
	}
	if s.Days <= 0 {
		return fmt.Errorf("schedule days must be positive, got %d", s.Days)
	}
	if !IsValidFormat(s.Format) {
		return fmt.Errorf("invalid report format: %s (must be one of: pdf, excel, html)", s.Format)
	}
	if s.DestinationChannel == "" {
		return errors.New("schedule destination channel is required")
	}

	if err := common.ValidateJobSchedule(s.CronExpr); err != nil {
		return err
	}

	return nil
}
