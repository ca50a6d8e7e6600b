// Package export renders a queue status snapshot as a spreadsheet or a
// printable PDF.
package export

import (
	"fmt"
	"io"
	"strings"

	"lead-routing/models"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

type Format string

const (
	XLSX Format = "xlsx"
	PDF  Format = "pdf"
)

// ParseFormat defaults to XLSX when s is empty.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return XLSX, nil
	case XLSX, PDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == PDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileName is the download name for an institution snapshot.
func (f Format) FileName(status models.QueueStatus) string {
	return fmt.Sprintf("queue_%s_%s.%s", status.InstitutionID, status.LastUpdated.Format("20060102_150405"), f)
}

var header = []string{"Position", "Lead ID", "Name", "Email", "Priority", "Score", "Source", "Course", "Estimated Wait"}

func row(info models.LeadQueueInfo) []string {
	return []string{
		fmt.Sprintf("%d", info.Position), info.LeadID, info.Name, info.Email, info.Priority,
		fmt.Sprintf("%.1f", info.Score), info.Source, info.Course, info.EstimatedWait,
	}
}

// Write renders status in the given format.
func Write(w io.Writer, format Format, status models.QueueStatus) error {
	switch format {
	case PDF:
		return WritePDF(w, status)
	default:
		return WriteXLSX(w, status)
	}
}

// WriteXLSX writes one sheet: a summary block, a blank row, then the queue.
func WriteXLSX(w io.Writer, status models.QueueStatus) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Queue"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Institution", status.InstitutionName},
		{"Leads in queue", status.TotalLeadsInQueue},
		{"Available counselors", status.AvailableCounselors},
		{"Busy counselors", status.BusyCounselors},
		{"Estimated processing time", status.EstimatedProcessingTime},
		{"Generated at", status.LastUpdated.Format("2006-01-02 15:04:05")},
	}
	line := 1
	for _, r := range summary {
		if err := setRow(f, sheet, line, r); err != nil {
			return err
		}
		line++
	}
	line++

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := setRow(f, sheet, line, head); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	first, _ := excelize.CoordinatesToCellName(1, line)
	last, _ := excelize.CoordinatesToCellName(len(header), line)
	if err := f.SetCellStyle(sheet, first, last, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for _, info := range status.QueuedLeads {
		line++
		values := []interface{}{info.Position, info.LeadID, info.Name, info.Email, info.Priority,
			info.Score, info.Source, info.Course, info.EstimatedWait}
		if err := setRow(f, sheet, line, values); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, line int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", line, err)
	}
	return nil
}

// WritePDF renders a landscape A4 report with a summary and the queue table.
func WritePDF(w io.Writer, status models.QueueStatus) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Lead Queue - %s", status.InstitutionName))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	for _, line := range []string{
		fmt.Sprintf("Leads in queue: %d", status.TotalLeadsInQueue),
		fmt.Sprintf("Counselors available: %d, busy: %d", status.AvailableCounselors, status.BusyCounselors),
		fmt.Sprintf("Estimated processing time: %s", status.EstimatedProcessingTime),
		fmt.Sprintf("Generated at: %s", status.LastUpdated.Format("2006-01-02 15:04:05")),
	} {
		pdf.Cell(40, 7, line)
		pdf.Ln(7)
	}
	pdf.Ln(5)

	widths := []float64{18, 38, 40, 52, 22, 16, 28, 30, 33}
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	if len(status.QueuedLeads) == 0 {
		pdf.CellFormat(sum(widths), 7, "Queue is empty", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	for _, info := range status.QueuedLeads {
		for i, v := range row(info) {
			pdf.CellFormat(widths[i], 6, truncate(pdf, v, widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("error generating queue PDF: %w", err)
	}
	return nil
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// truncate shortens s so it fits a cell of the given width.
func truncate(pdf *gofpdf.Fpdf, s string, width float64) string {
	const pad = 2
	if pdf.GetStringWidth(s) <= width-pad {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width-pad {
		s = s[:len(s)-1]
	}
	return s + "..."
}
