package interfaces

import (
	"context"

	"github.com/ternarybob/trendwatch/internal/models"
)

// FetchOptions tune a single upstream fetch
type FetchOptions struct {
	Strict  bool              // Fail with UpstreamUnavailable instead of returning a stub
	Filters map[string]string // Optional source filters passed through to the analysis tool
}

// UpstreamClient talks to the external MCP analysis service. Stateless and
// safely reentrant; the stub fallback policy lives here so the pipeline can
// always produce something to publish.
type UpstreamClient interface {
	// Fetch retrieves trend data for the given analysis window. On upstream
	// failure it returns a deterministic stub dataset unless opts.Strict.
	Fetch(ctx context.Context, days int, opts FetchOptions) (*models.TrendDataset, error)

	// Historical retrieves historical data for a single technology
	Historical(ctx context.Context, technology string) (map[string]interface{}, error)

	// HealthCheck pings the analysis service
	HealthCheck(ctx context.Context) error

	// Close releases the underlying transport
	Close() error
}
