package bootstrap

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	"github.com/mohammadpnp/roster-onboarding/internal/config"
	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/accounts"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/credentials"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/extraction"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/file"
)

// Components holds the collaborators shared by every wizard in the process.
type Components struct {
	Registry    *prometheus.Registry
	Metrics     *app.Metrics
	Pipeline    app.IngestionPipeline
	Creator     domain.AccountCreator
	Credentials domain.CredentialGenerator
	Files       *file.LocalSource

	log logrus.FieldLogger
}

func NewComponents(cfg *config.Config, log logrus.FieldLogger) *Components {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(registry)

	if cfg.Extraction.Key() == "" {
		log.Warn("no extraction API key configured; ingestion will rely on line parsing")
	}

	creds := credentials.NewGenerator()
	service := extraction.NewClient(extraction.Config{
		APIKey:            cfg.Extraction.Key(),
		BaseURL:           cfg.Extraction.BaseURL,
		Model:             cfg.Extraction.Model,
		Temperature:       cfg.Extraction.Temperature,
		MaxTokens:         cfg.Extraction.MaxTokens,
		Timeout:           cfg.Extraction.Timeout,
		RequestsPerSecond: cfg.Extraction.RPS,
		Burst:             cfg.Extraction.Burst,
	}, log.WithField("component", "extraction"))

	pipeline := app.NewIngestionPipeline(service, creds, app.PipelineConfig{
		MaxInputRunes:   cfg.Extraction.MaxInput,
		DisableFallback: !cfg.Extraction.Fallback,
	}, log.WithField("component", "ingestion"), metrics)

	creator := accounts.NewSimulated(accounts.SimulatedConfig{
		FailureRate: cfg.Provisioning.FailureRate,
		MinDelay:    cfg.Provisioning.MinDelay,
		MaxDelay:    cfg.Provisioning.MaxDelay,
	}, log.WithField("component", "accounts"))

	return &Components{
		Registry:    registry,
		Metrics:     metrics,
		Pipeline:    pipeline,
		Creator:     creator,
		Credentials: creds,
		Files:       file.NewLocalSource(cfg.Upload.BaseDir, cfg.Upload.MaxBytes),
		log:         log,
	}
}

// NewWizard builds a wizard whose background provisioning is bound to runCtx.
func (c *Components) NewWizard(runCtx context.Context) *app.Wizard {
	return app.NewWizard(app.WizardDeps{
		Pipeline:    c.Pipeline,
		Creator:     c.Creator,
		Credentials: c.Credentials,
		Log:         c.log.WithField("component", "wizard"),
		Metrics:     c.Metrics,
		RunContext:  runCtx,
	}, app.WizardConfig{})
}
