package onboarding

import "errors"

var (
	ErrInvalidTransition    = errors.New("invalid wizard transition")
	ErrRosterInvalid        = errors.New("roster has invalid records")
	ErrNoRecords            = errors.New("no records found in input")
	ErrConfirmationRequired = errors.New("discarding progress requires confirmation")
	ErrNoPendingExtraction  = errors.New("no extraction awaiting confirmation")
	ErrRecordNotFound       = errors.New("record not found")
	ErrExportNotReady       = errors.New("credentials are not ready for export")
	ErrProvisioningActive   = errors.New("provisioning is still running")
	ErrIngestionActive      = errors.New("extraction is still running")
	ErrNotRetryable         = errors.New("record is not in error state")
	ErrWizardClosed         = errors.New("wizard is closed")
)
