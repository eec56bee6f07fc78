package bootstrap

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	httpecho "github.com/mohammadpnp/roster-onboarding/internal/interfaces/http/echo"
)

type ServerConfig struct {
	MetricsPath    string
	MaxUploadBytes int64
}

func NewHTTPServer(cfg ServerConfig, sessions httpecho.SessionStore, gatherer prometheus.Gatherer, log logrus.FieldLogger) *echo.Echo {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("10M"))
	server.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			}).Debug("request handled")
			return nil
		},
	}))

	wizardHandler := httpecho.NewWizardHandler(sessions, cfg.MaxUploadBytes, log.WithField("component", "http"))
	httpecho.RegisterRoutes(server, wizardHandler)

	server.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return server
}
