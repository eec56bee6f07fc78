package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/export"
)

type textReader interface {
	ReadText(ctx context.Context, sourcePath string) (string, error)
}

type terminalSession struct {
	wizard *app.Wizard
	files  textReader
	out    io.Writer
	opts   options
}

type reviewAction string

const (
	actionConfirm    reviewAction = "confirm"
	actionEdit       reviewAction = "edit"
	actionAdd        reviewAction = "add"
	actionRemove     reviewAction = "remove"
	actionRegenerate reviewAction = "regenerate"
	actionBack       reviewAction = "back"
)

func (s *terminalSession) run(ctx context.Context) error {
	err := s.steps(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return s.close(ctx)
	}
	return err
}

func (s *terminalSession) steps(ctx context.Context) error {
	for !s.wizard.Closed() {
		st := s.wizard.State()
		fmt.Fprintf(s.out, "\n== %s ==\n", st.Title)

		var err error
		switch st.Step {
		case app.StepAccountType:
			err = s.chooseAccountType(ctx)
		case app.StepLinkExisting:
			err = s.linkExisting(ctx, st)
		case app.StepInput:
			err = s.collectInput(ctx)
		case app.StepReview:
			err = s.review(ctx)
		case app.StepProvisioning:
			return s.provision(ctx)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *terminalSession) chooseAccountType(ctx context.Context) error {
	choice := app.AccountTypeCreateNew
	if s.opts.filePath == "" && s.opts.text == "" {
		err := ask(ctx, huh.NewSelect[app.AccountType]().
			Title("How do you want to add students?").
			Options(
				huh.NewOption("Create new student accounts", app.AccountTypeCreateNew),
				huh.NewOption("Link existing student accounts", app.AccountTypeLinkExisting),
			).
			Value(&choice))
		if err != nil {
			return err
		}
	}
	return s.wizard.SelectAccountType(choice)
}

func (s *terminalSession) linkExisting(ctx context.Context, st app.WizardState) error {
	fmt.Fprintf(s.out, "Share this code with students: %s (valid until %s)\n",
		st.LinkCode.Code, st.LinkCode.ExpiresAt.Format(time.RFC1123))

	done := true
	err := ask(ctx, huh.NewConfirm().
		Title("Finished linking?").
		Affirmative("Done").
		Negative("Back").
		Value(&done))
	if err != nil {
		return err
	}
	if !done {
		return s.wizard.Back()
	}
	if _, err := s.wizard.FinishLinking(); errors.Is(err, app.ErrConfirmationRequired) {
		return s.close(ctx)
	} else if err != nil {
		return err
	}
	return nil
}

func (s *terminalSession) collectInput(ctx context.Context) error {
	switch {
	case s.opts.filePath != "":
		text, err := s.files.ReadText(ctx, s.opts.filePath)
		if err != nil {
			return fmt.Errorf("read roster file: %w", err)
		}
		if err := s.wizard.SetFileInput(filepath.Base(s.opts.filePath), text); err != nil {
			return err
		}
		s.opts.filePath = ""
	case s.opts.text != "":
		if err := s.wizard.SetInput(s.opts.text); err != nil {
			return err
		}
		s.opts.text = ""
	default:
		text := s.wizard.State().Input
		err := ask(ctx, huh.NewText().
			Title("Paste or type student names").
			Description("One per line, a table, an email list... any format works.").
			Value(&text))
		if err != nil {
			return err
		}
		if err := s.wizard.SetInput(text); err != nil {
			return err
		}
	}

	fmt.Fprintln(s.out, "Reading names...")
	result, err := s.wizard.SubmitInput(ctx)
	printMessages(s.out, "warning", result.Warnings)
	printMessages(s.out, "error", result.Errors)
	if errors.Is(err, app.ErrNoRecords) {
		return nil
	}
	if err != nil {
		return err
	}

	if s.wizard.State().PendingExtraction == nil {
		return nil
	}

	fmt.Fprintf(s.out, "Found %d names (%s, confidence %.0f%%):\n", len(result.Records), result.ContentType, result.Confidence*100)
	printRoster(s.out, result.Records, nil)

	accept := false
	err = ask(ctx, huh.NewConfirm().
		Title("These results may need a closer look. Use them anyway?").
		Affirmative("Use as-is").
		Negative("Try again").
		Value(&accept))
	if err != nil {
		return err
	}
	if accept {
		return s.wizard.AcceptExtraction()
	}
	return s.wizard.RejectExtraction()
}

func (s *terminalSession) review(ctx context.Context) error {
	st := s.wizard.State()
	printRoster(s.out, st.Roster, st.FieldErrors)
	printMessages(s.out, "error", st.ValidationMessages)

	action := actionConfirm
	err := ask(ctx, huh.NewSelect[reviewAction]().
		Title(fmt.Sprintf("%d students", len(st.Roster))).
		Options(
			huh.NewOption("Create accounts", actionConfirm),
			huh.NewOption("Edit a student", actionEdit),
			huh.NewOption("Add a student", actionAdd),
			huh.NewOption("Remove a student", actionRemove),
			huh.NewOption("Regenerate a password", actionRegenerate),
			huh.NewOption("Back", actionBack),
		).
		Value(&action))
	if err != nil {
		return err
	}

	switch action {
	case actionConfirm:
		if _, err := s.wizard.ConfirmRoster(); err != nil && !errors.Is(err, app.ErrRosterInvalid) {
			return err
		}
		return nil
	case actionAdd:
		r, err := s.wizard.AddRecord()
		if err != nil {
			return err
		}
		return s.edit(ctx, r)
	case actionBack:
		return s.wizard.Back()
	}

	r, err := s.pickRecord(ctx, st.Roster)
	if err != nil {
		return err
	}
	switch action {
	case actionEdit:
		return s.edit(ctx, r)
	case actionRemove:
		return s.wizard.RemoveRecord(r.ID)
	case actionRegenerate:
		_, err := s.wizard.RegeneratePassword(r.ID)
		return err
	}
	return nil
}

func (s *terminalSession) pickRecord(ctx context.Context, roster []domain.Record) (domain.Record, error) {
	options := make([]huh.Option[int], len(roster))
	for i, r := range roster {
		options[i] = huh.NewOption(fmt.Sprintf("%d. %s", i+1, displayName(r)), i)
	}

	index := 0
	err := ask(ctx, huh.NewSelect[int]().Title("Which student?").Options(options...).Value(&index))
	if err != nil {
		return domain.Record{}, err
	}
	return roster[index], nil
}

func (s *terminalSession) edit(ctx context.Context, r domain.Record) error {
	first, initial, password := r.FirstName, r.LastInitial, r.Password
	err := ask(ctx,
		huh.NewInput().Title("First name").Value(&first),
		huh.NewInput().Title("Last initial").CharLimit(1).Value(&initial),
		huh.NewInput().Title("Password").Value(&password),
	)
	if err != nil {
		return err
	}

	_, err = s.wizard.UpdateRecord(r.ID, domain.RecordPatch{FirstName: &first, LastInitial: &initial, Password: &password})
	return err
}

func (s *terminalSession) provision(ctx context.Context) error {
	run, err := s.wizard.Provisioning()
	if err != nil {
		return err
	}

	stop := run.Subscribe(func(update domain.ProvisioningStatus, snap domain.ProvisioningSnapshot) {
		if update.State.Terminal() {
			fmt.Fprintln(s.out, progressLine(update, snap))
		}
	})
	defer stop()

	run.ProvisionAll(ctx)
	for {
		summary := run.Snapshot().Summary
		fmt.Fprintf(s.out, "%d of %d accounts created, %d failed\n", summary.CompletedCount, run.Snapshot().Total, summary.ErrorCount)
		if summary.ErrorCount == 0 {
			break
		}

		retry := true
		err := ask(ctx, huh.NewConfirm().Title("Retry failed accounts?").Value(&retry))
		if err != nil {
			return err
		}
		if !retry {
			break
		}
		run.RetryFailed(ctx)
	}

	if err := s.exportCredentials(); err != nil {
		return err
	}
	s.wizard.ConfirmClose()
	return nil
}

func (s *terminalSession) exportCredentials() error {
	if s.opts.exportPath == "" {
		return nil
	}
	records, err := s.wizard.CompletedRecords()
	if errors.Is(err, app.ErrExportNotReady) {
		fmt.Fprintln(s.out, "No accounts were created; nothing to export.")
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	path := s.opts.exportPath
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.Filename(now))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create credential workbook: %w", err)
	}
	defer f.Close()

	if err := export.WriteCredentials(f, records, now); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Credentials written to %s\n", path)
	return nil
}

// close discards the wizard, asking first when progress would be lost.
func (s *terminalSession) close(ctx context.Context) error {
	discarded, err := s.wizard.RequestClose()
	if discarded || !errors.Is(err, app.ErrConfirmationRequired) {
		return err
	}

	discard := false
	err = ask(context.WithoutCancel(ctx), huh.NewConfirm().
		Title("Discard your progress?").
		Affirmative("Discard").
		Negative("Keep editing").
		Value(&discard))
	if err != nil || discard {
		s.wizard.ConfirmClose()
		return nil
	}
	s.wizard.CancelClose()
	return s.run(ctx)
}

func ask(ctx context.Context, fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx)
}

func progressLine(update domain.ProvisioningStatus, snap domain.ProvisioningSnapshot) string {
	name := update.RecordID
	for _, r := range snap.Records {
		if r.ID == update.RecordID {
			name = displayName(r)
			break
		}
	}
	done := snap.Summary.CompletedCount + snap.Summary.ErrorCount

	if update.State == domain.StateError {
		return fmt.Sprintf("[%d/%d] %s failed: %s", done, snap.Total, name, update.Reason)
	}
	return fmt.Sprintf("[%d/%d] %s created", done, snap.Total, name)
}

func displayName(r domain.Record) string {
	if strings.TrimSpace(r.FirstName) == "" {
		return "(unnamed)"
	}
	return r.DisplayName()
}

func printRoster(out io.Writer, roster []domain.Record, fieldErrors []domain.FieldErrors) {
	for i, r := range roster {
		line := fmt.Sprintf("  %2d. %-20s %-14s %s", i+1, displayName(r), r.Username, r.Password)
		if i < len(fieldErrors) && !fieldErrors[i].Valid() {
			line += "  <- needs fixing"
		}
		fmt.Fprintln(out, line)
	}
}

func printMessages(out io.Writer, kind string, messages []string) {
	for _, m := range messages {
		fmt.Fprintf(out, "  %s: %s\n", kind, m)
	}
}
