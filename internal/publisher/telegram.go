// -----------------------------------------------------------------------
// Publisher - artifact delivery to a destination channel via the Bot API
// -----------------------------------------------------------------------

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/common"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default per-call HTTP timeout
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second)
	DefaultRateLimit = 1
)

// TelegramPublisher delivers artifacts through the Telegram Bot API. It does
// not deduplicate; the orchestrator calls publish at most once per attempt.
type TelegramPublisher struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Publisher = (*TelegramPublisher)(nil)

// NewTelegramPublisher creates a publisher from configuration
func NewTelegramPublisher(config *common.PublisherConfig, logger arbor.ILogger) *TelegramPublisher {
	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	return &TelegramPublisher{
		baseURL: strings.TrimRight(config.APIBaseURL, "/"),
		token:   config.BotToken,
		httpClient: &http.Client{
			Timeout: common.ParseDuration(config.RequestTimeout, DefaultTimeout),
		},
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		logger:  logger,
	}
}

// apiResponse is the Bot API envelope
type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Publish sends the artifact as a document with the summary as caption
func (p *TelegramPublisher) Publish(ctx context.Context, destination string, artifact *models.ReportArtifact, summary string) (*interfaces.DeliveryReceipt, error) {
	if destination == "" {
		return nil, models.NewPipelineError(models.ErrInvalidDestination, "destination channel is required")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, models.WrapPipelineError(models.ErrTransientDelivery, err, "rate limiter interrupted")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", destination); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.WriteField("caption", summary); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	fileName := fmt.Sprintf("trends_report.%s", artifact.FileExtension())
	part, err := writer.CreateFormFile("document", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(artifact.Bytes); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendDocument", p.baseURL, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := p.send(req, destination)
	if err != nil {
		return nil, err
	}

	var message struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(response.Result, &message); err != nil {
		return nil, fmt.Errorf("failed to parse delivery result: %w", err)
	}

	p.logger.Info().
		Str("destination", destination).
		Str("file", fileName).
		Int64("message_id", message.MessageID).
		Msg("Artifact delivered")

	return &interfaces.DeliveryReceipt{
		MessageID:   fmt.Sprintf("%d", message.MessageID),
		DeliveredAt: time.Now(),
	}, nil
}

// SendText sends a plain text message to a channel
func (p *TelegramPublisher) SendText(ctx context.Context, destination string, text string) error {
	if destination == "" {
		return models.NewPipelineError(models.ErrInvalidDestination, "destination channel is required")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return models.WrapPipelineError(models.ErrTransientDelivery, err, "rate limiter interrupted")
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": destination,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = p.send(req, destination)
	return err
}

// send executes the request and translates Bot API failures into the
// pipeline error taxonomy
func (p *TelegramPublisher) send(req *http.Request, destination string) (*apiResponse, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrTransientDelivery, err, "delivery request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrTransientDelivery, err, "failed to read delivery response")
	}

	var response apiResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, models.WrapPipelineError(models.ErrTransientDelivery, err,
			"unexpected delivery response (status %d)", resp.StatusCode)
	}

	if response.OK {
		return &response, nil
	}

	return nil, p.classifyError(&response, destination)
}

// classifyError maps a Bot API error to the pipeline taxonomy. Permission
// and bad-channel failures are terminal; rate limits and server errors are
// retryable.
func (p *TelegramPublisher) classifyError(response *apiResponse, destination string) error {
	switch {
	case response.ErrorCode == http.StatusForbidden:
		return models.NewPipelineError(models.ErrNoPostPermission,
			"bot cannot post to %s: %s", destination, response.Description)
	case response.ErrorCode == http.StatusBadRequest:
		return models.NewPipelineError(models.ErrInvalidDestination,
			"bad channel reference %s: %s", destination, response.Description)
	case response.ErrorCode == http.StatusTooManyRequests:
		return models.NewPipelineError(models.ErrTransientDelivery,
			"rate limited by the Bot API: %s", response.Description)
	default:
		return models.NewPipelineError(models.ErrTransientDelivery,
			"delivery failed (code %d): %s", response.ErrorCode, response.Description)
	}
}
