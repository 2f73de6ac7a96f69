// Package report writes the per-file compression log as an xlsx workbook.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// SheetTitle is the name of the single worksheet.
const SheetTitle = "Image Compression Log"

// NotApplicable marks quality and method of files copied verbatim.
const NotApplicable = "-"

// Header is the first row of the sheet.
var Header = []string{
	"Filename",
	"Original Size (KB)",
	"Compressed Quality",
	"Method",
	"Output Size (KB)",
	"Size Reduction (%)",
	"Output Filename",
	"Processing Time (s)",
}

// Row is one processed file.
type Row struct {
	File       string // relative to the input root
	OriginalKB float64
	Copied     bool
	Quality    int
	Method     int // negative when the format has no method knob
	OutputKB   float64
	Output     string // relative to the output root
	Elapsed    time.Duration
}

// Reduction is the size saving in percent.
func (r Row) Reduction() float64 {
	if r.OriginalKB <= 0 {
		return 0
	}
	return (1 - r.OutputKB/r.OriginalKB) * 100
}

// QualityLabel is the quality column text.
func (r Row) QualityLabel() string {
	if r.Copied {
		return NotApplicable
	}
	return strconv.Itoa(r.Quality)
}

// MethodLabel is the method column text.
func (r Row) MethodLabel() string {
	switch {
	case r.Copied:
		return NotApplicable
	case r.Method < 0:
		return "N/A"
	default:
		return strconv.Itoa(r.Method)
	}
}

func (r Row) cells() []any {
	return []any{
		r.File,
		round2(r.OriginalKB),
		r.QualityLabel(),
		r.MethodLabel(),
		round2(r.OutputKB),
		math.Round(r.Reduction()*10) / 10,
		r.Output,
		round2(r.Elapsed.Seconds()),
	}
}

// WriteWorkbook saves rows to path as an xlsx file, creating parent
// directories. An empty rows slice still produces the header.
func WriteWorkbook(path string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTitle); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetTitle, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(Header))
	if err := f.SetCellStyle(SheetTitle, "A1", last+"1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetTitle, "A", last, 20); err != nil {
		return err
	}
	if err := f.SetPanes(SheetTitle, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row.cells()
		if err := f.SetSheetRow(SheetTitle, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
