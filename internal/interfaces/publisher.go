package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/trendwatch/internal/models"
)

// DeliveryReceipt confirms a delivered artifact
type DeliveryReceipt struct {
	MessageID   string    `json:"message_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// Publisher delivers a finished artifact and summary text to a destination
// channel. It does not deduplicate; retry-safety is the orchestrator's
// responsibility via the job state machine.
type Publisher interface {
	// Publish sends the artifact as a document with the summary as caption.
	// Fails with NoPostPermission or InvalidDestination (terminal) or
	// TransientDeliveryError (retryable).
	Publish(ctx context.Context, destination string, artifact *models.ReportArtifact, summary string) (*DeliveryReceipt, error)

	// SendText sends a plain text message to a channel
	SendText(ctx context.Context, destination string, text string) error
}

// AdminNotifier reports terminal job failures to the operator channel
type AdminNotifier interface {
	NotifyJobFailed(ctx context.Context, job *models.ReportJob)
}
