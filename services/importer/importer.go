// Package importer loads leads in bulk from an Excel workbook and submits
// them one by one, collecting a per-row failure report.
package importer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"lead-routing/logger"
	"lead-routing/models"

	"github.com/xuri/excelize/v2"
)

// Submitter queues a single lead. *assignment.Coordinator satisfies it.
type Submitter interface {
	SubmitLead(ctx context.Context, actorID string, lead models.Lead) (models.Lead, error)
}

// Row is one parsed data row; Line is the 1-based sheet row number.
type Row struct {
	Line int
	Lead models.Lead
}

type Failure struct {
	Row   int    `json:"row"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Error string `json:"error"`
}

type Report struct {
	Total     int           `json:"total_count"`
	Succeeded int           `json:"success_count"`
	Failed    []Failure     `json:"failed_leads,omitempty"`
	Leads     []models.Lead `json:"-"`
}

type Importer struct {
	submitter Submitter
	log       *logger.Logger
}

func New(submitter Submitter, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Default()
	}
	return &Importer{submitter: submitter, log: log}
}

// Import parses the workbook and submits every row to institutionID. Rows that
// fail validation or submission are reported, not fatal; only an unreadable
// workbook returns an error.
func (im *Importer) Import(ctx context.Context, actorID, institutionID string, r io.Reader) (Report, error) {
	rows, err := Parse(r)
	if err != nil {
		return Report{}, err
	}
	rows, dupes := Deduplicate(rows)

	report := Report{Total: len(rows) + len(dupes), Failed: dupes}
	for _, row := range rows {
		lead := row.Lead
		lead.InstitutionID = institutionID
		created, err := im.submitter.SubmitLead(ctx, actorID, lead)
		if err != nil {
			im.log.With("row", row.Line, "email", lead.Email).Warn("import row failed: %v", err)
			report.Failed = append(report.Failed, Failure{Row: row.Line, Email: lead.Email, Phone: lead.Phone, Error: err.Error()})
			continue
		}
		report.Succeeded++
		report.Leads = append(report.Leads, created)
	}

	im.log.With("institution", institutionID).Info("bulk import completed: %d successful, %d failed", report.Succeeded, len(report.Failed))
	return report, nil
}

// Parse reads the first sheet. Columns are found by header name, so their
// order in the sheet does not matter.
func Parse(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data in sheet")
	}

	cols := detectColumns(rows[0])
	if cols[colFirstName] < 0 && cols[colName] < 0 {
		return nil, fmt.Errorf("no name column found in header %v", rows[0])
	}

	var out []Row
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		lead := models.Lead{
			FirstName:      extractField(row, cols[colFirstName]),
			LastName:       extractField(row, cols[colLastName]),
			Email:          extractField(row, cols[colEmail]),
			Phone:          extractField(row, cols[colPhone]),
			CourseInterest: extractField(row, cols[colCourse]),
			Priority:       models.Priority(strings.ToUpper(extractField(row, cols[colPriority]))),
			BudgetRange:    extractField(row, cols[colBudget]),
			Qualification:  extractField(row, cols[colQualification]),
			Notes:          extractField(row, cols[colNotes]),
		}
		if lead.FirstName == "" {
			lead.FirstName, lead.LastName = splitName(extractField(row, cols[colName]))
		}
		if src := extractField(row, cols[colSource]); src != "" {
			lead.Source = models.NormalizeSource(src)
		} else {
			lead.Source = models.SourceWebsite
		}
		out = append(out, Row{Line: i + 1, Lead: lead})
	}
	return out, nil
}

// Deduplicate keeps the first row for each email and phone and reports the
// rest as failures.
func Deduplicate(rows []Row) (kept []Row, dupes []Failure) {
	seenEmail := make(map[string]int)
	seenPhone := make(map[string]int)
	for _, row := range rows {
		email := strings.ToLower(row.Lead.Email)
		phone := row.Lead.Phone
		if first, ok := seenEmail[email]; ok && email != "" {
			dupes = append(dupes, duplicate(row, first))
			continue
		}
		if first, ok := seenPhone[phone]; ok && phone != "" {
			dupes = append(dupes, duplicate(row, first))
			continue
		}
		seenEmail[email] = row.Line
		seenPhone[phone] = row.Line
		kept = append(kept, row)
	}
	return kept, dupes
}

func duplicate(row Row, first int) Failure {
	return Failure{
		Row:   row.Line,
		Email: row.Lead.Email,
		Phone: row.Lead.Phone,
		Error: fmt.Sprintf("duplicate of row %d", first),
	}
}

const (
	colName = iota
	colFirstName
	colLastName
	colEmail
	colPhone
	colCourse
	colSource
	colPriority
	colBudget
	colQualification
	colNotes
	numCols
)

// detectColumns finds column indices by matching header names; -1 marks a
// missing column.
func detectColumns(headers []string) [numCols]int {
	var idx [numCols]int
	for i := range idx {
		idx[i] = -1
	}
	for i, header := range headers {
		switch strings.ToLower(strings.TrimSpace(header)) {
		case "name", "student name", "full name":
			idx[colName] = i
		case "first name", "first_name", "firstname":
			idx[colFirstName] = i
		case "last name", "last_name", "lastname", "surname":
			idx[colLastName] = i
		case "email", "e-mail", "email address":
			idx[colEmail] = i
		case "phone", "mobile", "phone number", "contact number":
			idx[colPhone] = i
		case "course", "course interest", "course_interest", "program":
			idx[colCourse] = i
		case "source", "lead source", "lead_source":
			idx[colSource] = i
		case "priority":
			idx[colPriority] = i
		case "budget", "budget range", "budget_range":
			idx[colBudget] = i
		case "education", "qualification", "degree", "educational qualification":
			idx[colQualification] = i
		case "notes", "comments":
			idx[colNotes] = i
		}
	}
	return idx
}

// extractField safely extracts a field from a row
func extractField(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
