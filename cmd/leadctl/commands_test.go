package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lead-routing/app"
	"lead-routing/config"
	"lead-routing/logger"
	"lead-routing/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// newTestApp returns one in-memory application shared by every command run,
// seeded with an institution and a single-slot counselor.
func newTestApp(t *testing.T) (*app.App, opener) {
	t.Helper()
	ctx := context.Background()
	a, err := app.New(ctx, config.Config{StoreBackend: "memory", DefaultCounselorCapacity: 1},
		logger.New(logger.Config{Output: io.Discard}))
	require.NoError(t, err)

	_, err = a.Coordinator.RegisterInstitution(ctx, models.Institution{ID: "inst", Name: "North Campus", IsActive: true})
	require.NoError(t, err)
	_, err = a.Coordinator.RegisterCounselor(ctx, models.Counselor{ID: "c1", InstitutionID: "inst", Name: "Meera", IsActive: true})
	require.NoError(t, err)

	return a, func(context.Context) (*app.App, error) { return a, nil }
}

// executeCommand runs a fresh command tree with args and returns captured output
func executeCommand(open opener, args ...string) (string, error) {
	root := newRootCmd(open)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeWorkbook(t *testing.T, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd(nil)
	assert.Equal(t, "leadctl", root.Use)

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"import", "status", "sweep", "rebuild", "health", "export", "counselors", "delete", "cleanup"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestInstitutionFlagIsRequired(t *testing.T) {
	_, open := newTestApp(t)
	_, err := executeCommand(open, "status")
	assert.ErrorContains(t, err, `required flag(s) "institution" not set`)
}

func TestImportThenSweep(t *testing.T) {
	a, open := newTestApp(t)
	path := writeWorkbook(t,
		[]interface{}{"Name", "Email", "Phone", "Course", "Priority"},
		[]interface{}{"Asha Rao", "asha@example.com", "+15550100", "MBA", "HIGH"},
		[]interface{}{"Ravi Kumar", "ravi@example.com", "+15550101", "MCA", "LOW"},
		[]interface{}{"No Email", "", "+15550102", "MBA", ""},
	)

	out, err := executeCommand(open, "import", path, "-i", "inst")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 3 leads")
	assert.Contains(t, out, "row 4")

	out, err = executeCommand(open, "status", "-i", "inst")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued: 2")
	assert.Contains(t, out, "Asha Rao")

	out, err = executeCommand(open, "sweep", "-i", "inst", "--actor", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "Assigned 1 leads")

	size, err := a.Coordinator.GetQueueSize(context.Background(), "inst")
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	out, err = executeCommand(open, "health", "-i", "inst")
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	out, err = executeCommand(open, "rebuild", "-i", "inst")
	require.NoError(t, err)
	assert.Contains(t, out, "Queue rebuilt with 1 leads")
}

func TestExport(t *testing.T) {
	_, open := newTestApp(t)
	dest := filepath.Join(t.TempDir(), "queue.pdf")

	_, err := executeCommand(open, "export", "-i", "inst", "--format", "pdf", "-o", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = executeCommand(open, "export", "-i", "inst", "--format", "csv")
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestUnknownInstitution(t *testing.T) {
	_, open := newTestApp(t)
	_, err := executeCommand(open, "sweep", "-i", "missing")
	assert.Error(t, err)
}

func TestCounselorsDeleteAndCleanup(t *testing.T) {
	a, open := newTestApp(t)
	ctx := context.Background()
	var ids []string
	for _, name := range []string{"asha", "ravi"} {
		lead, err := a.Coordinator.SubmitLead(ctx, "test", models.Lead{
			InstitutionID: "inst", FirstName: name, Email: name + "@example.com", Phone: "+15550100", CourseInterest: "MBA",
		})
		require.NoError(t, err)
		ids = append(ids, lead.ID)
	}
	pulled, err := a.Coordinator.PullNextForCounselor(ctx, "c1", "c1", "inst")
	require.NoError(t, err)
	require.NotNil(t, pulled)

	out, err := executeCommand(open, "counselors", "-i", "inst")
	require.NoError(t, err)
	assert.Contains(t, out, "Meera")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "Available: 0 of 1")

	_, err = a.Coordinator.Complete(ctx, "c1", pulled.ID, models.StatusCompleted, "")
	require.NoError(t, err)

	queued := ids[0]
	if queued == pulled.ID {
		queued = ids[1]
	}
	out, err = executeCommand(open, "delete", queued, "-i", "inst")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted lead "+queued+" (QUEUED)")
	_, err = executeCommand(open, "delete", queued, "-i", "inst")
	assert.Error(t, err)

	out, err = executeCommand(open, "cleanup", "-i", "inst")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 closed leads")

	time.Sleep(2 * time.Millisecond)
	out, err = executeCommand(open, "cleanup", "-i", "inst", "--older-than", "1ns")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 closed leads")
}
