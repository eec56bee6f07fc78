package echo

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/export"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/file"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SessionStore resolves wizard sessions by id.
type SessionStore interface {
	Create() (string, *app.Wizard)
	Get(id string) (*app.Wizard, error)
	Delete(id string)
}

type WizardHandler struct {
	sessions       SessionStore
	maxUploadBytes int64
	log            logrus.FieldLogger
	now            func() time.Time
}

func NewWizardHandler(sessions SessionStore, maxUploadBytes int64, log logrus.FieldLogger) *WizardHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = file.DefaultMaxBytes
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WizardHandler{sessions: sessions, maxUploadBytes: maxUploadBytes, log: log, now: time.Now}
}

type sessionOutput struct {
	ID    string          `json:"id"`
	State app.WizardState `json:"state"`
}

type accountTypeRequest struct {
	Type app.AccountType `json:"type"`
}

type inputRequest struct {
	Text string `json:"text"`
}

type closeRequest struct {
	Confirm bool `json:"confirm"`
}

type submitOutput struct {
	Extraction domain.ExtractionResult `json:"extraction"`
	State      app.WizardState         `json:"state"`
}

type recordOutput struct {
	Record domain.Record   `json:"record"`
	State  app.WizardState `json:"state"`
}

func (h *WizardHandler) CreateSession(c echo.Context) error {
	id, w := h.sessions.Create()
	h.log.WithField("session_id", id).Info("wizard session created")
	return c.JSON(http.StatusCreated, apiResponse{Data: sessionOutput{ID: id, State: w.State()}})
}

func (h *WizardHandler) GetSession(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}
	return h.state(c, w)
}

func (h *WizardHandler) SelectAccountType(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	var req accountTypeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := w.SelectAccountType(req.Type); err != nil {
		return writeError(c, h.log, err, nil)
	}
	return h.state(c, w)
}

func (h *WizardHandler) SetInput(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	var req inputRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := w.SetInput(req.Text); err != nil {
		return writeError(c, h.log, err, nil)
	}
	return h.state(c, w)
}

func (h *WizardHandler) UploadInput(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "multipart field \"file\" is required")
	}
	if header.Size > h.maxUploadBytes {
		return writeError(c, h.log, file.ErrFileTooLarge, nil)
	}

	src, err := header.Open()
	if err != nil {
		return badRequest(c, "uploaded file could not be read")
	}
	defer src.Close()

	text, err := file.ToText(header.Filename, src, h.maxUploadBytes)
	if err != nil {
		return writeError(c, h.log, err, nil)
	}
	if err := w.SetFileInput(header.Filename, text); err != nil {
		return writeError(c, h.log, err, nil)
	}
	return h.state(c, w)
}

// SubmitInput runs ingestion. An empty result is reported as 422 with the extraction attached.
func (h *WizardHandler) SubmitInput(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	result, err := w.SubmitInput(c.Request().Context())
	out := submitOutput{Extraction: result, State: w.State()}
	if err != nil {
		return writeError(c, h.log, err, out)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *WizardHandler) AcceptExtraction(c echo.Context) error {
	return h.transition(c, (*app.Wizard).AcceptExtraction)
}

func (h *WizardHandler) RejectExtraction(c echo.Context) error {
	return h.transition(c, (*app.Wizard).RejectExtraction)
}

func (h *WizardHandler) AddRecord(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	r, err := w.AddRecord()
	if err != nil {
		return writeError(c, h.log, err, nil)
	}
	return c.JSON(http.StatusCreated, apiResponse{Data: recordOutput{Record: r, State: w.State()}})
}

func (h *WizardHandler) UpdateRecord(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	var patch domain.RecordPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	r, err := w.UpdateRecord(c.Param("recordID"), patch)
	if err != nil {
		return writeError(c, h.log, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: recordOutput{Record: r, State: w.State()}})
}

func (h *WizardHandler) RegeneratePassword(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	r, err := w.RegeneratePassword(c.Param("recordID"))
	if err != nil {
		return writeError(c, h.log, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: recordOutput{Record: r, State: w.State()}})
}

func (h *WizardHandler) RemoveRecord(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	if err := w.RemoveRecord(c.Param("recordID")); err != nil {
		return writeError(c, h.log, err, nil)
	}
	return h.state(c, w)
}

func (h *WizardHandler) ConfirmRoster(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	if _, err := w.ConfirmRoster(); err != nil {
		return writeError(c, h.log, err, w.State())
	}
	return c.JSON(http.StatusAccepted, apiResponse{Data: w.State()})
}

func (h *WizardHandler) GetProvisioning(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	run, err := w.Provisioning()
	if err != nil {
		return writeError(c, h.log, err, nil)
	}
	return c.JSON(http.StatusOK, apiResponse{Data: run.Snapshot()})
}

func (h *WizardHandler) RetryFailed(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	if err := w.RetryFailed(); err != nil {
		return writeError(c, h.log, err, nil)
	}
	return c.JSON(http.StatusAccepted, apiResponse{Data: w.State()})
}

func (h *WizardHandler) RetryOne(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return badRequest(c, "index must be an integer")
	}
	if err := w.RetryOne(index); err != nil {
		return writeError(c, h.log, err, nil)
	}
	return c.JSON(http.StatusAccepted, apiResponse{Data: w.State()})
}

// ExportCredentials streams the credential workbook for the accounts that were created.
func (h *WizardHandler) ExportCredentials(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	records, err := w.CompletedRecords()
	if err != nil {
		return writeError(c, h.log, err, nil)
	}

	now := h.now()
	var buf bytes.Buffer
	if err := export.WriteCredentials(&buf, records, now); err != nil {
		return writeError(c, h.log, err, nil)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.Filename(now)+`"`)
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}

func (h *WizardHandler) Back(c echo.Context) error {
	return h.transition(c, (*app.Wizard).Back)
}

func (h *WizardHandler) FinishLinking(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	closed, err := w.FinishLinking()
	if err != nil {
		return writeError(c, h.log, err, w.State())
	}
	if closed {
		h.sessions.Delete(c.Param("id"))
	}
	return h.state(c, w)
}

// Close discards the session. Without confirm it only succeeds when nothing would be lost.
func (h *WizardHandler) Close(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}

	var req closeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if req.Confirm {
		w.ConfirmClose()
	} else if _, err := w.RequestClose(); err != nil {
		return writeError(c, h.log, err, w.State())
	}

	h.sessions.Delete(c.Param("id"))
	h.log.WithField("session_id", c.Param("id")).Info("wizard session closed")
	return h.state(c, w)
}

func (h *WizardHandler) CancelClose(c echo.Context) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}
	w.CancelClose()
	return h.state(c, w)
}

func (h *WizardHandler) transition(c echo.Context, fn func(*app.Wizard) error) error {
	w, ok, err := h.wizard(c)
	if !ok {
		return err
	}
	if err := fn(w); err != nil {
		return writeError(c, h.log, err, nil)
	}
	return h.state(c, w)
}

// wizard resolves the session. When ok is false the response was already written and err is
// what the handler must return.
func (h *WizardHandler) wizard(c echo.Context) (*app.Wizard, bool, error) {
	w, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return nil, false, c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
			Code:    "not_found",
			Message: "session not found",
		}})
	}
	return w, true, nil
}

func (h *WizardHandler) state(c echo.Context, w *app.Wizard) error {
	return c.JSON(http.StatusOK, apiResponse{Data: w.State()})
}
