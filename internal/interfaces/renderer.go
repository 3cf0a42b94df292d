package interfaces

import (
	"github.com/ternarybob/trendwatch/internal/models"
)

// Renderer turns a trend dataset into a report artifact. Pure and
// deterministic: identical dataset and format yield content-identical
// artifacts modulo the generation timestamp, which is recorded on the
// artifact and excluded from its checksum. No filesystem or network access.
type Renderer interface {
	Render(dataset *models.TrendDataset, format models.ReportFormat) (*models.ReportArtifact, error)
}
