package renderer

import (
	"fmt"
	"strings"

	"github.com/ternarybob/trendwatch/internal/models"
	"github.com/xuri/excelize/v2"
)

const trendsSheet = "Trends"

// renderExcel writes the dataset as a spreadsheet, one row per trend item
func renderExcel(dataset *models.TrendDataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(trendsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	row := 1
	if dataset.IsStub {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(trendsSheet, cell, stubWatermark); err != nil {
			return nil, fmt.Errorf("failed to write watermark: %w", err)
		}
		row += 2
	}

	headers := []string{"Rank", "Topic", "Score", "Evidence"}
	for col, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := f.SetCellValue(trendsSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	row++

	for i, item := range dataset.Items {
		values := []interface{}{i + 1, item.Topic, item.Score, strings.Join(item.Evidence, "; ")}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(trendsSheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", i+1, err)
			}
		}
		row++
	}

	if err := f.SetColWidth(trendsSheet, "B", "B", 30); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(trendsSheet, "D", "D", 60); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
