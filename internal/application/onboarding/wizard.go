package onboarding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

type Step string

const (
	StepAccountType  Step = "account_type"
	StepInput        Step = "input"
	StepReview       Step = "review"
	StepProvisioning Step = "provisioning"
	StepLinkExisting Step = "link_existing"
)

// Title is the heading a renderer shows for the step.
func (s Step) Title() string {
	switch s {
	case StepAccountType, StepInput:
		return "Add students"
	case StepReview:
		return "Review student information"
	case StepProvisioning:
		return "Create accounts"
	case StepLinkExisting:
		return "Link existing accounts"
	}
	return ""
}

// Progress is the position of the step in the create-new flow, or 0 outside it.
func (s Step) Progress() int {
	switch s {
	case StepInput:
		return 1
	case StepReview:
		return 2
	case StepProvisioning:
		return 3
	}
	return 0
}

type AccountType string

const (
	AccountTypeCreateNew    AccountType = "create_new"
	AccountTypeLinkExisting AccountType = "link_existing"
)

type LinkCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WizardState is a read-only view of the wizard.
type WizardState struct {
	Step               Step                         `json:"step"`
	Title              string                       `json:"title"`
	Progress           int                          `json:"progress"`
	Input              string                       `json:"input"`
	InputSource        string                       `json:"input_source,omitempty"`
	Roster             []domain.Record              `json:"roster"`
	PendingExtraction  *domain.ExtractionResult     `json:"pending_extraction,omitempty"`
	LastExtraction     *domain.ExtractionResult     `json:"last_extraction,omitempty"`
	ShowValidation     bool                         `json:"show_validation"`
	FieldErrors        []domain.FieldErrors         `json:"field_errors,omitempty"`
	ValidationMessages []string                     `json:"validation_messages,omitempty"`
	LinkCode           *LinkCode                    `json:"link_code,omitempty"`
	Provisioning       *domain.ProvisioningSnapshot `json:"provisioning,omitempty"`
	CloseRequested     bool                         `json:"close_requested"`
	HasUnsavedProgress bool                         `json:"has_unsaved_progress"`
	Closed             bool                         `json:"closed"`
}

type WizardConfig struct {
	Provisioning ProvisioningConfig
	LinkCodeTTL  time.Duration
}

// Wizard sequences ingestion, review and provisioning for one operator session.
// It owns the only copy of the roster.
type Wizard struct {
	pipeline IngestionPipeline
	creator  domain.AccountCreator
	creds    domain.CredentialGenerator
	cfg      WizardConfig
	log      logrus.FieldLogger
	metrics  *Metrics
	now      func() time.Time
	// runCtx outlives individual requests so provisioning continues after the call that started it.
	runCtx context.Context

	mu             sync.Mutex
	step           Step
	input          string
	inputSource    string
	roster         []domain.Record
	revision       uint64
	ingesting      bool
	pending        *domain.ExtractionResult
	last           *domain.ExtractionResult
	showValidation bool
	linkCode       *LinkCode
	run            *ProvisioningOrchestrator
	runRevision    uint64
	closeRequested bool
	closed         bool
}

type WizardDeps struct {
	Pipeline    IngestionPipeline
	Creator     domain.AccountCreator
	Credentials domain.CredentialGenerator
	Log         logrus.FieldLogger
	Metrics     *Metrics
	// RunContext bounds background provisioning. Defaults to context.Background().
	RunContext context.Context
	Now        func() time.Time
}

func NewWizard(deps WizardDeps, cfg WizardConfig) *Wizard {
	if cfg.LinkCodeTTL <= 0 {
		cfg.LinkCodeTTL = 24 * time.Hour
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.RunContext == nil {
		deps.RunContext = context.Background()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Wizard{
		pipeline: deps.Pipeline,
		creator:  deps.Creator,
		creds:    deps.Credentials,
		cfg:      cfg,
		log:      deps.Log,
		metrics:  deps.Metrics,
		now:      deps.Now,
		runCtx:   deps.RunContext,
		step:     StepAccountType,
	}
}

// SelectAccountType leaves the first step. Linking existing accounts issues a fresh code.
func (w *Wizard) SelectAccountType(t AccountType) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expectLocked(StepAccountType); err != nil {
		return err
	}

	switch t {
	case AccountTypeCreateNew:
		w.step = StepInput
	case AccountTypeLinkExisting:
		w.linkCode = &LinkCode{Code: w.creds.LinkingCode(), ExpiresAt: w.now().Add(w.cfg.LinkCodeTTL)}
		w.step = StepLinkExisting
	default:
		return fmt.Errorf("%w: unknown account type %q", ErrInvalidTransition, t)
	}
	w.log.WithField("step", w.step).Debug("account type selected")
	return nil
}

// SetInput replaces the free text. A pending confirmation gate is discarded.
func (w *Wizard) SetInput(text string) error {
	return w.setInput(text, "")
}

// SetFileInput replaces the free text with the decoded content of an uploaded file.
func (w *Wizard) SetFileInput(name, text string) error {
	return w.setInput(text, name)
}

func (w *Wizard) setInput(text, source string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.idleInputLocked(); err != nil {
		return err
	}
	w.input = text
	w.inputSource = source
	w.pending = nil
	return nil
}

// SubmitInput runs ingestion on the current text. A result that needs confirmation holds the
// wizard at the input step until AcceptExtraction or RejectExtraction; a confident result with
// records advances to review. Only one ingestion runs at a time and the wizard stays readable
// while it is in flight.
func (w *Wizard) SubmitInput(ctx context.Context) (domain.ExtractionResult, error) {
	w.mu.Lock()
	if err := w.idleInputLocked(); err != nil {
		w.mu.Unlock()
		return domain.ExtractionResult{}, err
	}
	w.ingesting = true
	text := w.input
	w.mu.Unlock()

	result := w.pipeline.Extract(ctx, text)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.ingesting = false
	if err := w.expectLocked(StepInput); err != nil {
		return result, err
	}
	w.last = &result
	w.pending = nil

	switch {
	case len(result.Records) == 0:
		return result, ErrNoRecords
	case result.NeedsValidation:
		w.pending = &result
	default:
		w.commitLocked(result.Records)
	}
	return result, nil
}

// AcceptExtraction commits the gated result as-is and advances to review.
func (w *Wizard) AcceptExtraction() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.idleInputLocked(); err != nil {
		return err
	}
	if w.pending == nil {
		return ErrNoPendingExtraction
	}
	w.commitLocked(w.pending.Records)
	w.pending = nil
	return nil
}

// RejectExtraction discards the gated result and stays at input.
func (w *Wizard) RejectExtraction() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.idleInputLocked(); err != nil {
		return err
	}
	if w.pending == nil {
		return ErrNoPendingExtraction
	}
	w.pending = nil
	return nil
}

func (w *Wizard) commitLocked(records []domain.Record) {
	w.roster = domain.CloneRecords(records)
	w.revision++
	w.showValidation = false
	w.step = StepReview
	w.log.WithField("records", len(records)).Info("roster committed for review")
}

// AddRecord appends a blank record with a fresh id and password.
func (w *Wizard) AddRecord() (domain.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expectLocked(StepReview); err != nil {
		return domain.Record{}, err
	}
	r := domain.Record{ID: w.creds.NewID(), Password: w.creds.Password()}
	w.roster = append(w.roster, r)
	w.revision++
	w.showValidation = false
	return r, nil
}

// UpdateRecord applies patch in place. Editing a name part recomputes the username once.
func (w *Wizard) UpdateRecord(id string, patch domain.RecordPatch) (domain.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r, err := w.recordLocked(id)
	if err != nil {
		return domain.Record{}, err
	}
	patch.Apply(r)
	if patch.TouchesName() {
		r.Username = w.creds.Username(r.FirstName, r.LastInitial)
	}
	w.revision++
	return *r, nil
}

func (w *Wizard) RegeneratePassword(id string) (domain.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r, err := w.recordLocked(id)
	if err != nil {
		return domain.Record{}, err
	}
	r.Password = w.creds.Password()
	w.revision++
	return *r, nil
}

// RemoveRecord deletes a record. Removing the last one returns to input.
func (w *Wizard) RemoveRecord(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expectLocked(StepReview); err != nil {
		return err
	}
	for i := range w.roster {
		if w.roster[i].ID == id {
			w.roster = append(w.roster[:i], w.roster[i+1:]...)
			w.revision++
			if len(w.roster) == 0 {
				w.step = StepInput
			}
			return nil
		}
	}
	return ErrRecordNotFound
}

func (w *Wizard) recordLocked(id string) (*domain.Record, error) {
	if err := w.expectLocked(StepReview); err != nil {
		return nil, err
	}
	for i := range w.roster {
		if w.roster[i].ID == id {
			return &w.roster[i], nil
		}
	}
	return nil, ErrRecordNotFound
}

// ConfirmRoster validates the roster and starts provisioning. A run is started at most once
// per roster revision; confirming an unchanged roster re-attaches to the existing run.
func (w *Wizard) ConfirmRoster() (domain.ProvisioningSnapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expectLocked(StepReview); err != nil {
		return domain.ProvisioningSnapshot{}, err
	}
	if !domain.IsRosterValid(w.roster) {
		w.showValidation = true
		return domain.ProvisioningSnapshot{}, ErrRosterInvalid
	}

	if w.run != nil && w.runRevision == w.revision {
		w.step = StepProvisioning
		return w.run.Snapshot(), nil
	}
	if w.run != nil && w.run.Busy() {
		return domain.ProvisioningSnapshot{}, ErrProvisioningActive
	}

	w.step = StepProvisioning
	w.run = NewProvisioningOrchestrator(w.creator, w.roster, w.cfg.Provisioning, w.log, w.metrics)
	w.runRevision = w.revision
	w.run.Start(w.runCtx)
	w.log.WithField("records", len(w.roster)).Info("provisioning started")
	return w.run.Snapshot(), nil
}

// Provisioning returns the current run, for observing or waiting on it.
func (w *Wizard) Provisioning() (*ProvisioningOrchestrator, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expectLocked(StepProvisioning); err != nil {
		return nil, err
	}
	return w.run, nil
}

// RetryFailed re-attempts every failed record in the background. It is rejected while the
// batch or an earlier retry is still running.
func (w *Wizard) RetryFailed() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.idleRunLocked(); err != nil {
		return err
	}
	w.run.StartRetryFailed(w.runCtx)
	return nil
}

// RetryOne re-attempts a single failed record in the background.
func (w *Wizard) RetryOne(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.idleRunLocked(); err != nil {
		return err
	}
	return w.run.StartRetryOne(w.runCtx, index)
}

func (w *Wizard) idleRunLocked() error {
	if err := w.expectLocked(StepProvisioning); err != nil {
		return err
	}
	if w.run.Busy() {
		return ErrProvisioningActive
	}
	return nil
}

// CompletedRecords returns the provisioned records for credential export once the batch finished.
func (w *Wizard) CompletedRecords() ([]domain.Record, error) {
	run, err := w.Provisioning()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportNotReady, err)
	}
	if !run.Finished() {
		return nil, ErrExportNotReady
	}
	completed := run.Snapshot().Completed()
	if len(completed) == 0 {
		return nil, ErrExportNotReady
	}
	return completed, nil
}

// Back moves to the logical predecessor of the current step.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWizardClosed
	}

	switch w.step {
	case StepInput:
		if w.ingesting {
			return ErrIngestionActive
		}
		w.pending = nil
		w.step = StepAccountType
	case StepLinkExisting:
		w.linkCode = nil
		w.step = StepAccountType
	case StepReview:
		w.step = StepInput
	case StepProvisioning:
		if w.run.Busy() {
			return ErrProvisioningActive
		}
		w.markProvisionedLocked()
		w.step = StepReview
	default:
		return fmt.Errorf("%w: no step before %s", ErrInvalidTransition, w.step)
	}
	w.closeRequested = false
	return nil
}

// markProvisionedLocked flags records whose accounts exist so a later run skips them.
func (w *Wizard) markProvisionedLocked() {
	snap := w.run.Snapshot()
	created := make(map[string]bool, len(snap.Statuses))
	for _, st := range snap.Statuses {
		if st.State == domain.StateCompleted {
			created[st.RecordID] = true
		}
	}
	changed := false
	for i := range w.roster {
		if created[w.roster[i].ID] && !w.roster[i].IsExisting {
			w.roster[i].IsExisting = true
			changed = true
		}
	}
	if changed {
		w.revision++
	}
}

// FinishLinking ends the link-existing branch. It closes right away unless free text was
// entered earlier, in which case the discard confirmation is raised as for RequestClose.
func (w *Wizard) FinishLinking() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.expectLocked(StepLinkExisting); err != nil {
		return false, err
	}
	if strings.TrimSpace(w.input) != "" {
		w.closeRequested = true
		return false, ErrConfirmationRequired
	}
	w.discardLocked()
	return true, nil
}

// HasUnsavedProgress is true everywhere except the first step with no text and no roster.
func (w *Wizard) HasUnsavedProgress() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.unsavedLocked()
}

func (w *Wizard) unsavedLocked() bool {
	return w.step != StepAccountType || strings.TrimSpace(w.input) != "" || len(w.roster) > 0
}

// RequestClose discards immediately when nothing would be lost and reports true. Otherwise it
// raises the discard confirmation and returns ErrConfirmationRequired.
func (w *Wizard) RequestClose() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return true, nil
	}
	if w.unsavedLocked() {
		w.closeRequested = true
		return false, ErrConfirmationRequired
	}
	w.discardLocked()
	return true, nil
}

// ConfirmClose discards all progress. Provisioning in flight is no longer observed.
func (w *Wizard) ConfirmClose() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		w.discardLocked()
	}
}

func (w *Wizard) CancelClose() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closeRequested = false
}

func (w *Wizard) discardLocked() {
	if w.run != nil {
		w.run.Detach()
	}
	w.log.WithField("step", w.step).Info("wizard discarded")

	w.step = StepAccountType
	w.input = ""
	w.inputSource = ""
	w.roster = nil
	w.pending = nil
	w.last = nil
	w.ingesting = false
	w.linkCode = nil
	w.run = nil
	w.showValidation = false
	w.closeRequested = false
	w.closed = true
}

func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closed
}

// State returns a detached copy of the wizard.
func (w *Wizard) State() WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := WizardState{
		Step:               w.step,
		Title:              w.step.Title(),
		Progress:           w.step.Progress(),
		Input:              w.input,
		InputSource:        w.inputSource,
		Roster:             domain.CloneRecords(w.roster),
		ShowValidation:     w.showValidation,
		CloseRequested:     w.closeRequested,
		HasUnsavedProgress: w.unsavedLocked(),
		Closed:             w.closed,
	}
	if st.Roster == nil {
		st.Roster = []domain.Record{}
	}
	if w.pending != nil {
		pending := *w.pending
		st.PendingExtraction = &pending
	}
	if w.last != nil {
		last := *w.last
		st.LastExtraction = &last
	}
	if w.linkCode != nil {
		code := *w.linkCode
		st.LinkCode = &code
	}
	if w.showValidation {
		st.FieldErrors = domain.ValidateRoster(w.roster)
		st.ValidationMessages = domain.ValidationMessages(st.FieldErrors)
	}
	if w.step == StepProvisioning && w.run != nil {
		snap := w.run.Snapshot()
		st.Provisioning = &snap
	}
	return st
}

func (w *Wizard) idleInputLocked() error {
	if err := w.expectLocked(StepInput); err != nil {
		return err
	}
	if w.ingesting {
		return ErrIngestionActive
	}
	return nil
}

func (w *Wizard) expectLocked(step Step) error {
	if w.closed {
		return ErrWizardClosed
	}
	if w.step != step {
		return fmt.Errorf("%w: expected step %s, current step %s", ErrInvalidTransition, step, w.step)
	}
	return nil
}
