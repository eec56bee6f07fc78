package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/mohammadpnp/roster-onboarding/internal/application/onboarding"
	"github.com/mohammadpnp/roster-onboarding/internal/bootstrap"
	"github.com/mohammadpnp/roster-onboarding/internal/config"
	"github.com/mohammadpnp/roster-onboarding/internal/infrastructure/session"
	"github.com/mohammadpnp/roster-onboarding/internal/logging"
)

func main() {
	cfg, err := config.Load(config.DefaultEnvFiles...)
	if err != nil {
		logging.New("error", "text", nil).Fatalf("failed to load configuration: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, nil)

	// Provisioning runs outlive the request that started them, so they hang off this context.
	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	comps := bootstrap.NewComponents(cfg, log)
	sessions := session.NewStore(func() *app.Wizard {
		return comps.NewWizard(runCtx)
	}, session.Config{TTL: cfg.Session.TTL}, log.WithField("component", "sessions"))
	sessions.Start(runCtx)

	server := bootstrap.NewHTTPServer(bootstrap.ServerConfig{
		MetricsPath:    cfg.MetricsPath,
		MaxUploadBytes: cfg.Upload.MaxBytes,
	}, sessions, comps.Registry, log)

	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := server.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	stopRuns()
}
