package publisher

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
)

// Notifier reports terminal job failures to the configured admin channel.
// DONE jobs never notify.
type Notifier struct {
	publisher    interfaces.Publisher
	adminChannel string
	logger       arbor.ILogger
}

// Compile-time assertion
var _ interfaces.AdminNotifier = (*Notifier)(nil)

// NewNotifier creates an admin notifier. An empty admin channel disables
// notifications.
func NewNotifier(publisher interfaces.Publisher, adminChannel string, logger arbor.ILogger) *Notifier {
	return &Notifier{
		publisher:    publisher,
		adminChannel: adminChannel,
		logger:       logger,
	}
}

// NotifyJobFailed sends a failure summary with the job ID for support
// reference. Best-effort: a failed notification is logged, never propagated.
func (n *Notifier) NotifyJobFailed(ctx context.Context, job *models.ReportJob) {
	if n.adminChannel == "" {
		return
	}

	text := fmt.Sprintf("Report job failed\nJob: %s\nRequested by: %s\nReason: %s\nDetail: %s",
		job.ID, job.RequestedBy, job.ErrorCategory.UserMessage(), job.LastError)

	if err := n.publisher.SendText(ctx, n.adminChannel, text); err != nil {
		n.logger.Warn().Err(err).
			Str("job_id", job.ID).
			Str("admin_channel", n.adminChannel).
			Msg("Failed to deliver admin failure notification")
	}
}
