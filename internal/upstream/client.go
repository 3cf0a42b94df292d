// -----------------------------------------------------------------------
// Upstream Client - MCP client for the external trend analysis service
// -----------------------------------------------------------------------

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/common"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
)

const (
	toolAnalyzeTrends  = "analyze_trends"
	toolHistoricalData = "get_historical_data"
)

// mcpSession is the subset of the MCP client the upstream client uses.
// Narrowed to an interface so tests can substitute a fake transport.
type mcpSession interface {
	Start(ctx context.Context) error
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Client talks MCP streamable-HTTP to the analysis service. Stateless apart
// from the lazily initialized session; safely reentrant.
type Client struct {
	serverURL string
	timeout   time.Duration
	maxDays   int
	logger    arbor.ILogger

	mu          sync.Mutex
	session     mcpSession
	initialized bool

	// newSession is swapped in tests
	newSession func() (mcpSession, error)
}

// Compile-time assertion
var _ interfaces.UpstreamClient = (*Client)(nil)

// NewClient creates an upstream client from configuration
func NewClient(config *common.UpstreamConfig, logger arbor.ILogger) *Client {
	c := &Client{
		serverURL: config.ServerURL,
		timeout:   common.ParseDuration(config.RequestTimeout, 30*time.Second),
		maxDays:   config.MaxDays,
		logger:    logger,
	}
	c.newSession = func() (mcpSession, error) {
		return client.NewStreamableHttpClient(c.serverURL)
	}
	return c
}

// connect lazily starts and initializes the MCP session
func (c *Client) connect(ctx context.Context) (mcpSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.initialized {
		return c.session, nil
	}

	session, err := c.newSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP transport: %w", err)
	}

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "trendwatch",
		Version: common.GetVersion(),
	}
	if _, err := session.Initialize(ctx, initRequest); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	c.session = session
	c.initialized = true
	return session, nil
}

// analyzePayload is the wire shape of the analyze_trends tool result
type analyzePayload struct {
	Items []struct {
		Topic           string    `json:"topic"`
		Score           float64   `json:"score"`
		Evidence        []string  `json:"evidence"`
		SourceTimestamp time.Time `json:"source_timestamp"`
	} `json:"items"`
}

// Fetch retrieves trend data for the analysis window. Days must be a
// positive integer within the configured maximum. On upstream failure the
// deterministic stub dataset is returned unless opts.Strict, in which case
// the failure surfaces as UpstreamUnavailable.
func (c *Client) Fetch(ctx context.Context, days int, opts interfaces.FetchOptions) (*models.TrendDataset, error) {
	if days <= 0 {
		return nil, models.NewPipelineError(models.ErrInvalidParameter, "days must be positive, got %d", days)
	}
	if days > c.maxDays {
		return nil, models.NewPipelineError(models.ErrInvalidParameter, "days must be <= %d, got %d", c.maxDays, days)
	}

	dataset, err := c.callAnalyze(ctx, days, opts.Filters)
	if err != nil {
		if opts.Strict {
			c.emitFetchEvent("failure", days, err)
			return nil, models.WrapPipelineError(models.ErrUpstreamUnavailable, err, "analysis service unavailable")
		}
		c.emitFetchEvent("stub", days, err)
		stub := NewStubDataset(days)
		stub.FetchedAt = time.Now()
		return stub, nil
	}

	c.emitFetchEvent("success", days, nil)
	return dataset, nil
}

func (c *Client) callAnalyze(ctx context.Context, days int, filters map[string]string) (*models.TrendDataset, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.connect(callCtx)
	if err != nil {
		return nil, err
	}

	args := map[string]interface{}{"days": days}
	if len(filters) > 0 {
		args["filters"] = filters
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = toolAnalyzeTrends
	request.Params.Arguments = args

	result, err := session.CallTool(callCtx, request)
	if err != nil {
		c.invalidate()
		return nil, fmt.Errorf("analyze_trends call failed: %w", err)
	}
	if result.IsError {
		return nil, fmt.Errorf("analyze_trends returned an error: %s", textContent(result))
	}

	var payload analyzePayload
	if err := json.Unmarshal([]byte(textContent(result)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse analyze_trends payload: %w", err)
	}

	dataset := &models.TrendDataset{
		Days:      days,
		FetchedAt: time.Now(),
	}
	for _, item := range payload.Items {
		dataset.Items = append(dataset.Items, models.TrendItem{
			Topic:           item.Topic,
			Score:           item.Score,
			Evidence:        item.Evidence,
			SourceTimestamp: item.SourceTimestamp,
		})
	}

	if err := dataset.Validate(); err != nil {
		return nil, fmt.Errorf("analyze_trends returned an invalid dataset: %w", err)
	}
	return dataset, nil
}

// Historical retrieves historical data for a single technology
func (c *Client) Historical(ctx context.Context, technology string) (map[string]interface{}, error) {
	if technology == "" {
		return nil, models.NewPipelineError(models.ErrInvalidParameter, "technology is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.connect(callCtx)
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrUpstreamUnavailable, err, "analysis service unavailable")
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = toolHistoricalData
	request.Params.Arguments = map[string]interface{}{"technology": technology}

	result, err := session.CallTool(callCtx, request)
	if err != nil {
		c.invalidate()
		return nil, models.WrapPipelineError(models.ErrUpstreamUnavailable, err, "get_historical_data call failed")
	}
	if result.IsError {
		return nil, models.NewPipelineError(models.ErrUpstreamUnavailable, "get_historical_data returned an error: %s", textContent(result))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(textContent(result)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse get_historical_data payload: %w", err)
	}
	return payload, nil
}

// HealthCheck pings the analysis service
func (c *Client) HealthCheck(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	session, err := c.connect(callCtx)
	if err != nil {
		return models.WrapPipelineError(models.ErrUpstreamUnavailable, err, "analysis service unreachable")
	}
	if err := session.Ping(callCtx); err != nil {
		c.invalidate()
		return models.WrapPipelineError(models.ErrUpstreamUnavailable, err, "analysis service ping failed")
	}
	return nil
}

// Close releases the MCP session
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	c.initialized = false
	return err
}

// invalidate drops a broken session so the next call reconnects
func (c *Client) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Close()
	}
	c.session = nil
	c.initialized = false
}

// emitFetchEvent publishes the per-call observability event used for
// downstream alerting
func (c *Client) emitFetchEvent(outcome string, days int, err error) {
	event := c.logger.Info()
	if outcome != "success" {
		event = c.logger.Warn().Err(err)
	}
	event.
		Str("event", "upstream_fetch").
		Str("outcome", outcome).
		Int("days", days).
		Msg("Upstream fetch completed")
}

// textContent extracts the first text content block from a tool result
func textContent(result *mcp.CallToolResult) string {
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
