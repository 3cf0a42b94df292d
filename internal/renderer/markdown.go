package renderer

import (
	"fmt"
	"strings"

	"github.com/ternarybob/trendwatch/internal/models"
)

// stubWatermark is the notice embedded in artifacts rendered from
// placeholder data so stub content is never presented as real analysis
const stubWatermark = "PLACEHOLDER DATA - the analysis service was unavailable when this report was generated"

// buildMarkdown produces the canonical report body. Deterministic for a
// given dataset: no timestamps, no random ordering. Every output format is
// derived from this content.
func buildMarkdown(dataset *models.TrendDataset) string {
	var b strings.Builder

	b.WriteString("# IT Trends Report\n\n")
	fmt.Fprintf(&b, "Analysis window: last %d days\n\n", dataset.Days)

	if dataset.IsStub {
		fmt.Fprintf(&b, "> %s\n\n", stubWatermark)
	}

	b.WriteString("## Top Trends\n\n")
	b.WriteString("| # | Topic | Score |\n")
	b.WriteString("| --- | --- | --- |\n")
	for i, item := range dataset.Items {
		fmt.Fprintf(&b, "| %d | %s | %.2f |\n", i+1, item.Topic, item.Score)
	}
	b.WriteString("\n")

	for _, item := range dataset.Items {
		if len(item.Evidence) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", item.Topic)
		for _, evidence := range item.Evidence {
			fmt.Fprintf(&b, "- %s\n", evidence)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// BuildSummaryCaption builds the short text posted alongside the artifact
func BuildSummaryCaption(dataset *models.TrendDataset) string {
	var b strings.Builder

	fmt.Fprintf(&b, "IT Trends Report (last %d days)\n", dataset.Days)
	for _, topic := range dataset.TopTopics(3) {
		fmt.Fprintf(&b, "- %s\n", topic)
	}
	if dataset.IsStub {
		b.WriteString("Note: placeholder data, analysis service was unavailable\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
