package bootstrap_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	"github.com/mohammadpnp/roster-onboarding/internal/bootstrap"
	"github.com/mohammadpnp/roster-onboarding/internal/config"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/session"
	"github.com/mohammadpnp/roster-onboarding/internal/logging"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		MetricsPath: "/metrics",
		Extraction: config.ExtractionOptions{
			BaseURL:  "http://127.0.0.1:1/",
			MaxInput: 8000,
			Fallback: true,
		},
		Upload:  config.UploadOptions{MaxBytes: 1 << 20, BaseDir: t.TempDir()},
		Session: config.SessionOptions{TTL: time.Hour},
	}
	log := logging.New("silent", "text", io.Discard)

	comps := bootstrap.NewComponents(cfg, log)
	store := session.NewStore(func() *app.Wizard { return comps.NewWizard(context.Background()) }, session.Config{TTL: cfg.Session.TTL}, log)
	server := bootstrap.NewHTTPServer(bootstrap.ServerConfig{MetricsPath: cfg.MetricsPath, MaxUploadBytes: cfg.Upload.MaxBytes}, store, comps.Registry, log)

	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/sessions", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "onboarding_provisioning_batches_total")
	assert.Contains(t, string(body), "go_goroutines")
}
