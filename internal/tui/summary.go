package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"squeeze/internal/processor"
)

type SummaryRow struct {
	Label string
	Value string
}

// BatchSummary lists the counters of a finished batch.
func BatchSummary(s processor.Summary) []SummaryRow {
	rows := []SummaryRow{
		{Label: "Files found", Value: fmt.Sprintf("%d", s.Total)},
		{Label: "Files written", Value: fmt.Sprintf("%d", s.Processed)},
		{Label: "Copied (already under target)", Value: fmt.Sprintf("%d", s.Copied)},
		{Label: "Skipped", Value: fmt.Sprintf("%d", s.Skipped)},
		{Label: "Failed", Value: fmt.Sprintf("%d", s.Failed)},
		{Label: "Input size", Value: HumanBytes(s.BytesIn)},
		{Label: "Output size", Value: HumanBytes(s.BytesOut)},
	}
	if s.BytesIn > 0 {
		saved := (1 - float64(s.BytesOut)/float64(s.BytesIn)) * 100
		rows = append(rows, SummaryRow{Label: "Size reduction", Value: fmt.Sprintf("%.1f%%", saved)})
	}
	if s.Stopped {
		rows = append(rows, SummaryRow{Label: "Status", Value: "stopped by user"})
	}
	return rows
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, len(row.Label))
		valueWidth = max(valueWidth, len(row.Value))
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		lines = append(lines, fmt.Sprintf("%s | %s", labelStyle.Render(label), valueStyle.Render(value)))
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var valueStyle = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
