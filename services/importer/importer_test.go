package importer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"lead-routing/errors"
	"lead-routing/logger"
	"lead-routing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

type fakeSubmitter struct {
	got []models.Lead
}

func (s *fakeSubmitter) SubmitLead(_ context.Context, _ string, lead models.Lead) (models.Lead, error) {
	if !strings.Contains(lead.Email, "@") {
		return models.Lead{}, errors.NewInvalidLeadDataError("Valid email is required")
	}
	lead.ID = "id-" + lead.FirstName
	s.got = append(s.got, lead)
	return lead, nil
}

func TestParse_DetectsColumnsInAnyOrder(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"Phone Number", "Full Name", "E-mail", "Course", "Lead Source", "Priority", "Qualification"},
		[]interface{}{"+15550100", "Asha Devi Rao", "asha@example.com", "MBA", "walk in", "high", "Bachelor"},
		[]interface{}{"", "", "", "", "", "", ""},
		[]interface{}{"+15550101", "Ravi", "ravi@example.com", "MCA", "", "", ""},
	)

	rows, err := Parse(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "Asha", first.Lead.FirstName)
	assert.Equal(t, "Devi Rao", first.Lead.LastName)
	assert.Equal(t, "+15550100", first.Lead.Phone)
	assert.Equal(t, models.SourceWalkIn, first.Lead.Source)
	assert.Equal(t, models.PriorityHigh, first.Lead.Priority)
	assert.Equal(t, "Bachelor", first.Lead.Qualification)

	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, models.SourceWebsite, rows[1].Lead.Source)
	assert.Empty(t, rows[1].Lead.LastName)
}

func TestParse_RequiresNameColumn(t *testing.T) {
	_, err := Parse(workbook(t, []interface{}{"Email", "Phone"}))
	assert.Error(t, err)

	_, err = Parse(strings.NewReader("not a workbook"))
	assert.Error(t, err)
}

func TestDeduplicate(t *testing.T) {
	rows := []Row{
		{Line: 2, Lead: models.Lead{Email: "a@example.com", Phone: "+1"}},
		{Line: 3, Lead: models.Lead{Email: "A@example.com", Phone: "+2"}},
		{Line: 4, Lead: models.Lead{Email: "b@example.com", Phone: "+1"}},
		{Line: 5, Lead: models.Lead{Email: "c@example.com", Phone: "+3"}},
	}
	kept, dupes := Deduplicate(rows)
	require.Len(t, kept, 2)
	assert.Equal(t, 2, kept[0].Line)
	assert.Equal(t, 5, kept[1].Line)
	require.Len(t, dupes, 2)
	assert.Equal(t, "duplicate of row 2", dupes[0].Error)
	assert.Equal(t, 4, dupes[1].Row)
}

func TestImport_ReportsFailuresPerRow(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"First Name", "Email", "Phone", "Course"},
		[]interface{}{"Asha", "asha@example.com", "+15550100", "MBA"},
		[]interface{}{"Ravi", "ravi-at-example", "+15550101", "MCA"},
		[]interface{}{"Asha", "asha@example.com", "+15550102", "MBA"},
	)
	sub := &fakeSubmitter{}
	report, err := New(sub, logger.NewDefault()).Import(context.Background(), "admin", "inst", buf)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, 4, report.Failed[0].Row)
	assert.Equal(t, 3, report.Failed[1].Row)
	assert.Contains(t, report.Failed[1].Error, "Valid email is required")

	require.Len(t, sub.got, 1)
	assert.Equal(t, "inst", sub.got[0].InstitutionID)
	require.Len(t, report.Leads, 1)
	assert.Equal(t, "id-Asha", report.Leads[0].ID)
}
