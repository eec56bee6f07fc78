package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/file"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{app.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "action is not available at the current step"},
	{app.ErrRosterInvalid, http.StatusUnprocessableEntity, "roster_invalid", "fix the highlighted fields before creating accounts"},
	{app.ErrNoRecords, http.StatusUnprocessableEntity, "no_records", "no student names found in the input text"},
	{app.ErrNoPendingExtraction, http.StatusConflict, "no_pending_extraction", "there is no extraction waiting for confirmation"},
	{app.ErrRecordNotFound, http.StatusNotFound, "record_not_found", "record not found"},
	{app.ErrExportNotReady, http.StatusConflict, "export_not_ready", "credentials are available once accounts were created"},
	{app.ErrProvisioningActive, http.StatusConflict, "provisioning_active", "account creation is still running"},
	{app.ErrIngestionActive, http.StatusConflict, "ingestion_active", "names are still being extracted"},
	{app.ErrNotRetryable, http.StatusConflict, "not_retryable", "only failed records can be retried"},
	{app.ErrConfirmationRequired, http.StatusConflict, "confirmation_required", "closing will discard your progress"},
	{app.ErrWizardClosed, http.StatusGone, "session_closed", "this session was closed"},
	{file.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds the upload size limit"},
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
		Code:    "bad_request",
		Message: message,
	}})
}

// writeError maps a wizard error to a status and envelope. data, when set, carries the state
// the client needs to render the rejection (e.g. field errors).
func writeError(c echo.Context, log logrus.FieldLogger, err error, data any) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.JSON(m.status, apiResponse{Data: data, Error: &errorBody{Code: m.code, Message: m.message}})
		}
	}

	log.WithError(err).WithField("path", c.Path()).Error("wizard request failed")
	return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
		Code:    "internal_error",
		Message: "unexpected error",
	}})
}
