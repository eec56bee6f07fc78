package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var DefaultEnvFiles = []string{".env", ".env.local"}

type ExtractionOptions struct {
	APIKey      string        `env:"EXTRACTION_API_KEY"`
	GitHubToken string        `env:"GITHUB_TOKEN"`
	BaseURL     string        `env:"EXTRACTION_BASE_URL" envDefault:"https://models.github.ai/inference"`
	Model       string        `env:"EXTRACTION_MODEL" envDefault:"gpt-4o-mini"`
	Temperature float64       `env:"EXTRACTION_TEMPERATURE" envDefault:"0.1"`
	MaxTokens   int64         `env:"EXTRACTION_MAX_TOKENS" envDefault:"1000"`
	Timeout     time.Duration `env:"EXTRACTION_TIMEOUT" envDefault:"30s"`
	RPS         float64       `env:"EXTRACTION_RPS" envDefault:"1"`
	Burst       int           `env:"EXTRACTION_BURST" envDefault:"2"`
	MaxInput    int           `env:"EXTRACTION_MAX_INPUT" envDefault:"8000"`
	Fallback    bool          `env:"EXTRACTION_FALLBACK" envDefault:"true"`
}

// Key returns the API key, falling back to GITHUB_TOKEN for the GitHub Models endpoint.
func (o ExtractionOptions) Key() string {
	if o.APIKey != "" {
		return o.APIKey
	}
	return o.GitHubToken
}

func (o ExtractionOptions) Validate() error {
	if o.Temperature < 0 || o.Temperature > 2 {
		return fmt.Errorf("extraction temperature must be within [0, 2], got %v", o.Temperature)
	}
	if o.MaxTokens <= 0 {
		return fmt.Errorf("extraction max tokens must be positive, got %d", o.MaxTokens)
	}
	if o.MaxInput <= 0 {
		return fmt.Errorf("extraction max input must be positive, got %d", o.MaxInput)
	}
	if o.RPS < 0 {
		return fmt.Errorf("extraction rps must be non-negative, got %v", o.RPS)
	}
	return nil
}

type ProvisioningOptions struct {
	FailureRate float64       `env:"PROVISIONING_FAILURE_RATE" envDefault:"0.05"`
	MinDelay    time.Duration `env:"PROVISIONING_MIN_DELAY" envDefault:"500ms"`
	MaxDelay    time.Duration `env:"PROVISIONING_MAX_DELAY" envDefault:"1500ms"`
}

func (o ProvisioningOptions) Validate() error {
	if o.FailureRate < 0 || o.FailureRate > 1 {
		return fmt.Errorf("provisioning failure rate must be within [0, 1], got %v", o.FailureRate)
	}
	if o.MinDelay < 0 || o.MaxDelay < o.MinDelay {
		return fmt.Errorf("provisioning delays must satisfy 0 <= min <= max, got %s..%s", o.MinDelay, o.MaxDelay)
	}
	return nil
}

type UploadOptions struct {
	MaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`
	BaseDir  string `env:"UPLOAD_BASE_DIR" envDefault:"."`
}

type SessionOptions struct {
	TTL time.Duration `env:"SESSION_TTL" envDefault:"2h"`
}

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	Extraction   ExtractionOptions
	Provisioning ProvisioningOptions
	Upload       UploadOptions
	Session      SessionOptions
}

// LoadEnv loads the env files that exist and reports how many were found.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads env files then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "silent", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("log level must be one of silent, error, warn, info, debug, got %q", c.LogLevel)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if err := c.Extraction.Validate(); err != nil {
		return fmt.Errorf("extraction configuration error: %w", err)
	}
	if err := c.Provisioning.Validate(); err != nil {
		return fmt.Errorf("provisioning configuration error: %w", err)
	}
	return nil
}
