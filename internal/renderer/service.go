// -----------------------------------------------------------------------
// Renderer - deterministic report artifact generation
// -----------------------------------------------------------------------

package renderer

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/interfaces"
	"github.com/ternarybob/trendwatch/internal/models"
)

// maxDatasetItems bounds the dataset size to protect against pathological
// memory use during rendering
const maxDatasetItems = 1000

// Service implements interfaces.Renderer
type Service struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Renderer = (*Service)(nil)

// NewService creates a new renderer service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// Render produces a report artifact in the requested format. Deterministic:
// the artifact checksum is computed over the canonical report content, which
// excludes the generation timestamp, so two renders of the same dataset are
// recognized as equivalent even though container formats (PDF metadata)
// differ byte-wise.
func (s *Service) Render(dataset *models.TrendDataset, format models.ReportFormat) (*models.ReportArtifact, error) {
	if !models.IsValidFormat(format) {
		return nil, models.NewPipelineError(models.ErrRender, "unsupported report format: %s", format)
	}
	if err := dataset.Validate(); err != nil {
		return nil, models.WrapPipelineError(models.ErrRender, err, "dataset failed validation")
	}
	if len(dataset.Items) == 0 && !dataset.IsStub {
		return nil, models.NewPipelineError(models.ErrRender, "dataset has no rows to render")
	}
	if len(dataset.Items) > maxDatasetItems {
		return nil, models.NewPipelineError(models.ErrRender,
			"dataset exceeds size ceiling: %d items (max %d)", len(dataset.Items), maxDatasetItems)
	}

	markdown := buildMarkdown(dataset)

	var output []byte
	var err error
	switch format {
	case models.FormatPDF:
		output, err = renderPDF(markdown, s.logger)
	case models.FormatHTML:
		output, err = renderHTML(markdown)
	case models.FormatExcel:
		output, err = renderExcel(dataset)
	}
	if err != nil {
		return nil, models.WrapPipelineError(models.ErrRender, err, "failed to render %s report", format)
	}

	s.logger.Debug().
		Str("format", string(format)).
		Int("items", len(dataset.Items)).
		Int("size", len(output)).
		Bool("is_stub", dataset.IsStub).
		Msg("Report rendered")

	return &models.ReportArtifact{
		Format:      format,
		Bytes:       output,
		Checksum:    contentChecksum(markdown, format),
		GeneratedAt: time.Now(),
		IsStub:      dataset.IsStub,
	}, nil
}

// contentChecksum hashes the canonical content plus the format tag.
// Generation timestamps are recorded on the artifact, never mixed in here.
func contentChecksum(markdown string, format models.ReportFormat) string {
	h := sha256.New()
	h.Write([]byte(format))
	h.Write([]byte{0})
	h.Write([]byte(markdown))
	return hex.EncodeToString(h.Sum(nil))
}
