package export

import (
	"bytes"
	"testing"
	"time"

	"lead-routing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func snapshot() models.QueueStatus {
	return models.QueueStatus{
		InstitutionID:           "inst",
		InstitutionName:         "North Campus",
		TotalLeadsInQueue:       2,
		AvailableCounselors:     1,
		BusyCounselors:          2,
		EstimatedProcessingTime: "1 hours",
		LastUpdated:             time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		QueuedLeads: []models.LeadQueueInfo{
			{Position: 1, LeadID: "l1", Name: "Asha Rao", Email: "asha@example.com", Priority: "URGENT", Score: 70, EstimatedWait: "30 minutes"},
			{Position: 2, LeadID: "l2", Name: "Ravi", Email: "ravi@example.com", Priority: "LOW", Score: 10, EstimatedWait: "1 hours"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, PDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())
	assert.Equal(t, "queue_inst_20250301_093000.pdf", f.FileName(snapshot()))

	_, err = ParseFormat("csv")
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, XLSX, snapshot()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Queue")
	require.NoError(t, err)
	assert.Equal(t, []string{"Institution", "North Campus"}, rows[0])
	assert.Equal(t, "Position", rows[7][0])
	assert.Equal(t, []string{"1", "l1", "Asha Rao", "asha@example.com", "URGENT", "70", "", "", "30 minutes"}, rows[8])
	assert.Equal(t, "l2", rows[9][1])
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, PDF, snapshot()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	buf.Reset()
	empty := snapshot()
	empty.QueuedLeads = nil
	require.NoError(t, WritePDF(&buf, empty))
	assert.NotZero(t, buf.Len())
}
