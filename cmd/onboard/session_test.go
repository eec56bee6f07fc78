package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

type stubService struct{}

func (stubService) Extract(ctx context.Context, text string) (domain.ServiceResponse, error) {
	return domain.ServiceResponse{
		Students:    []domain.Candidate{{FirstName: "Jane", LastName: "Doe", Confidence: 0.95}},
		ContentType: domain.ContentTypeStudentList,
		Confidence:  0.95,
	}, nil
}

type stubCreator struct{}

func (stubCreator) Create(ctx context.Context, record domain.Record) error { return nil }

type stubCredentials struct{}

func (stubCredentials) NewID() string                      { return "rec-1" }
func (stubCredentials) Password() string                   { return "kindowl11" }
func (stubCredentials) Username(first, last string) string { return first + last + "555" }
func (stubCredentials) LinkingCode() string                { return "000111" }

func provisionedWizard(t *testing.T) *app.Wizard {
	t.Helper()

	w := app.NewWizard(app.WizardDeps{
		Pipeline:    app.NewIngestionPipeline(stubService{}, stubCredentials{}, app.PipelineConfig{}, nil, nil),
		Creator:     stubCreator{},
		Credentials: stubCredentials{},
	}, app.WizardConfig{})

	require.NoError(t, w.SelectAccountType(app.AccountTypeCreateNew))
	require.NoError(t, w.SetInput("Jane Doe"))
	_, err := w.SubmitInput(context.Background())
	require.NoError(t, err)
	_, err = w.ConfirmRoster()
	require.NoError(t, err)

	run, err := w.Provisioning()
	require.NoError(t, err)
	run.ProvisionAll(context.Background())
	return w
}

func TestExportCredentialsIntoDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var out bytes.Buffer
	s := &terminalSession{wizard: provisionedWizard(t), out: &out, opts: options{exportPath: dir}}

	require.NoError(t, s.exportCredentials())

	matches, err := filepath.Glob(filepath.Join(dir, "class_credentials_*.xlsx"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, out.String(), "Credentials written to")

	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer f.Close()
	wb, err := excelize.OpenReader(f)
	require.NoError(t, err)
	defer wb.Close()

	password, err := wb.GetCellValue("Class", "C6")
	require.NoError(t, err)
	assert.Equal(t, "kindowl11", password)
}

func TestProgressLine(t *testing.T) {
	t.Parallel()

	snap := domain.ProvisioningSnapshot{
		Records: []domain.Record{{ID: "a", FirstName: "Jane", LastInitial: "D"}, {ID: "b", FirstName: "Li", LastInitial: "W"}},
		Statuses: []domain.ProvisioningStatus{
			{RecordID: "a", State: domain.StateCompleted},
			{RecordID: "b", State: domain.StateError, Reason: "account creation failed"},
		},
		Summary: domain.ProvisioningSummary{CompletedCount: 1, ErrorCount: 1},
		Total:   2,
	}

	assert.Equal(t, "[2/2] Li W. failed: account creation failed", progressLine(snap.Statuses[1], snap))
	assert.Equal(t, "[2/2] Jane D. created", progressLine(snap.Statuses[0], snap))
}

func TestPrintRosterFlagsInvalidRows(t *testing.T) {
	t.Parallel()

	roster := []domain.Record{
		{ID: "a", FirstName: "Jane", LastInitial: "D", Password: "kindowl11"},
		{ID: "b", Password: "kindowl12"},
	}

	var out bytes.Buffer
	printRoster(&out, roster, domain.ValidateRoster(roster))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "needs fixing")
	assert.Contains(t, lines[1], "(unnamed)")
	assert.Contains(t, lines[1], "needs fixing")
}
