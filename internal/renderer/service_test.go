package renderer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/trendwatch/internal/models"
	"github.com/ternarybob/trendwatch/internal/upstream"
)

func testDataset() *models.TrendDataset {
	return &models.TrendDataset{
		Days: 7,
		Items: []models.TrendItem{
			{Topic: "AI Agents", Score: 92.5, Evidence: []string{"agent frameworks trending", "tool-use benchmarks published"}},
			{Topic: "Rust", Score: 81.0, Evidence: []string{"kernel driver support expanded"}},
			{Topic: "WebAssembly", Score: 64.25},
		},
		FetchedAt: time.Now(),
	}
}

func TestRenderAllFormats(t *testing.T) {
	service := NewService(arbor.NewLogger())
	dataset := testDataset()

	tests := []struct {
		name   string
		format models.ReportFormat
		header []byte
	}{
		{"pdf", models.FormatPDF, []byte("%PDF")},
		{"excel", models.FormatExcel, []byte("PK")}, // xlsx is a zip container
		{"html", models.FormatHTML, []byte("<!DOCTYPE html>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			artifact, err := service.Render(dataset, tt.format)
			require.NoError(t, err)
			require.NotNil(t, artifact)

			assert.Equal(t, tt.format, artifact.Format)
			assert.NotEmpty(t, artifact.Bytes)
			assert.NotEmpty(t, artifact.Checksum)
			assert.False(t, artifact.GeneratedAt.IsZero())
			assert.False(t, artifact.IsStub)

			require.GreaterOrEqual(t, len(artifact.Bytes), len(tt.header))
			assert.Equal(t, tt.header, artifact.Bytes[:len(tt.header)])
		})
	}
}

func TestRenderDeterministicChecksum(t *testing.T) {
	service := NewService(arbor.NewLogger())

	for _, format := range []models.ReportFormat{models.FormatPDF, models.FormatExcel, models.FormatHTML} {
		first, err := service.Render(testDataset(), format)
		require.NoError(t, err)

		// Rendered later, same dataset: checksum must match even though
		// container metadata (PDF creation date) differs
		second, err := service.Render(testDataset(), format)
		require.NoError(t, err)

		assert.Equal(t, first.Checksum, second.Checksum, "format %s", format)
	}
}

func TestRenderChecksumVariesByInput(t *testing.T) {
	service := NewService(arbor.NewLogger())

	base, err := service.Render(testDataset(), models.FormatHTML)
	require.NoError(t, err)

	changed := testDataset()
	changed.Items[0].Score = 50.0
	other, err := service.Render(changed, models.FormatHTML)
	require.NoError(t, err)

	assert.NotEqual(t, base.Checksum, other.Checksum)

	// Same content, different format: checksums must not collide
	asPDF, err := service.Render(testDataset(), models.FormatPDF)
	require.NoError(t, err)
	assert.NotEqual(t, base.Checksum, asPDF.Checksum)
}

func TestRenderUnsupportedFormat(t *testing.T) {
	service := NewService(arbor.NewLogger())

	artifact, err := service.Render(testDataset(), models.ReportFormat("docx"))
	assert.Nil(t, artifact)
	assert.True(t, models.IsCategory(err, models.ErrRender))
}

func TestRenderEmptyDataset(t *testing.T) {
	service := NewService(arbor.NewLogger())

	artifact, err := service.Render(&models.TrendDataset{Days: 7}, models.FormatPDF)
	assert.Nil(t, artifact)
	assert.True(t, models.IsCategory(err, models.ErrRender))
}

func TestRenderSizeCeiling(t *testing.T) {
	service := NewService(arbor.NewLogger())

	dataset := &models.TrendDataset{Days: 7}
	for i := 0; i <= maxDatasetItems; i++ {
		dataset.Items = append(dataset.Items, models.TrendItem{Topic: "topic", Score: 1})
	}

	artifact, err := service.Render(dataset, models.FormatHTML)
	assert.Nil(t, artifact)
	require.Error(t, err)
	assert.True(t, models.IsCategory(err, models.ErrRender))
	assert.Contains(t, err.Error(), "size ceiling")
}

func TestRenderStubWatermark(t *testing.T) {
	service := NewService(arbor.NewLogger())
	stub := upstream.NewStubDataset(14)

	artifact, err := service.Render(stub, models.FormatHTML)
	require.NoError(t, err)

	assert.True(t, artifact.IsStub)
	assert.Contains(t, string(artifact.Bytes), "PLACEHOLDER DATA")
}

func TestBuildMarkdownContent(t *testing.T) {
	markdown := buildMarkdown(testDataset())

	assert.True(t, strings.HasPrefix(markdown, "# IT Trends Report"))
	assert.Contains(t, markdown, "last 7 days")
	assert.Contains(t, markdown, "| 1 | AI Agents | 92.50 |")
	assert.Contains(t, markdown, "| 3 | WebAssembly | 64.25 |")
	assert.Contains(t, markdown, "- kernel driver support expanded")
	assert.NotContains(t, markdown, "PLACEHOLDER")

	// Topics without evidence get no detail section
	assert.NotContains(t, markdown, "## WebAssembly")
}

func TestBuildSummaryCaption(t *testing.T) {
	caption := BuildSummaryCaption(testDataset())

	assert.Contains(t, caption, "last 7 days")
	assert.Contains(t, caption, "- AI Agents")
	assert.Contains(t, caption, "- Rust")
	assert.NotContains(t, caption, "placeholder")

	stubCaption := BuildSummaryCaption(upstream.NewStubDataset(7))
	assert.Contains(t, stubCaption, "placeholder data")
}
