package upstream

import (
	"fmt"

	"github.com/ternarybob/trendwatch/internal/models"
)

// stubTopics are the fixed placeholder entries used when the analysis
// service is unavailable. The content is deterministic so two stub renders
// of the same request are recognized as equivalent artifacts.
var stubTopics = []string{"AI Agents", "Rust", "Kotlin Multiplatform"}

// NewStubDataset builds the deterministic fallback dataset for an analysis
// window. Marked is_stub so the renderer can watermark the output instead of
// presenting placeholder content as real data.
func NewStubDataset(days int) *models.TrendDataset {
	items := make([]models.TrendItem, 0, len(stubTopics))
	for _, topic := range stubTopics {
		items = append(items, models.TrendItem{
			Topic:    topic,
			Score:    0,
			Evidence: []string{fmt.Sprintf("Analysis service unavailable; no data for the last %d days", days)},
		})
	}
	return &models.TrendDataset{
		Items:  items,
		Days:   days,
		IsStub: true,
	}
}
