package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

const systemPrompt = "You are a helpful assistant that extracts student names from text. Always respond with valid JSON only."

const promptTemplate = `Extract every student name from the text below. The input may be a plain list, a table,
an email list, or names mixed with other text, in formats such as "First Last" or "Last, First".

Input text:
"""
%s
"""

Return ONLY a JSON object of this exact shape:
{
  "students": [{"firstName": "Jane", "lastName": "Doe", "confidence": 0.95}],
  "contentType": "student_list",
  "confidence": 0.9,
  "warnings": [],
  "errors": []
}

Rules:
- contentType is "student_list" when the text is mainly a roster, "mixed_content" when names are mixed
  with unrelated text, and "unlikely_student_content" when it does not look like a list of people.
- confidence values are between 0 and 1: per student, how sure you are it is a person's name;
  overall, how sure you are the extraction is complete and correct.
- Ignore titles, grades and other annotations. Use an empty lastName when there is none.
- Put names you are unsure about in warnings, and problems that prevent extraction in errors.`

type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int64
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client is the ExtractionService backed by an OpenAI-compatible chat completions API.
type Client struct {
	api     openai.Client
	cfg     Config
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func NewClient(cfg Config, log logrus.FieldLogger, opts ...option.RequestOption) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	reqOpts = append(reqOpts, opts...)

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		api:     openai.NewClient(reqOpts...),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}
}

func (c *Client) Extract(ctx context.Context, text string) (domain.ServiceResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ServiceResponse{}, &domain.ExtractionError{Class: domain.ErrorClassUnavailable, Err: err}
	}

	started := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf(promptTemplate, text)),
		},
		Temperature: openai.Float(c.cfg.Temperature),
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return domain.ServiceResponse{}, classify(err)
	}

	c.log.WithFields(logrus.Fields{
		"model":       c.cfg.Model,
		"duration_ms": time.Since(started).Milliseconds(),
		"input_chars": len(text),
	}).Debug("extraction response received")

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return domain.ServiceResponse{}, &domain.ExtractionError{Class: domain.ErrorClassMalformed, Err: domain.ErrEmptyResponse}
	}

	out, err := decodeResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.ServiceResponse{}, &domain.ExtractionError{Class: domain.ErrorClassMalformed, Err: err}
	}
	return out, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &domain.ExtractionError{
			Class:      domain.ClassifyStatus(apiErr.StatusCode),
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}
	return &domain.ExtractionError{Class: domain.ErrorClassUnavailable, Err: err}
}

type wireCandidate struct {
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Confidence *float64 `json:"confidence"`
}

type wireResponse struct {
	Students    []wireCandidate    `json:"students"`
	ContentType domain.ContentType `json:"contentType"`
	Confidence  *float64           `json:"confidence"`
	Warnings    []string           `json:"warnings"`
	Errors      []string           `json:"errors"`
}

// decodeResponse parses the model output. Missing scores are treated conservatively: an absent
// overall confidence becomes 0.5 and an absent per-student confidence inherits the overall one.
func decodeResponse(content string) (domain.ServiceResponse, error) {
	var wire wireResponse
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &wire); err != nil {
		return domain.ServiceResponse{}, fmt.Errorf("decode extraction json: %w", err)
	}

	out := domain.ServiceResponse{
		ContentType: wire.ContentType,
		Confidence:  0.5,
		Warnings:    wire.Warnings,
		Errors:      wire.Errors,
	}
	if wire.Confidence != nil {
		out.Confidence = clamp(*wire.Confidence)
	}
	if !out.ContentType.Valid() {
		out.ContentType = domain.ContentTypeMixedContent
	}

	out.Students = make([]domain.Candidate, 0, len(wire.Students))
	for _, s := range wire.Students {
		confidence := out.Confidence
		if s.Confidence != nil {
			confidence = clamp(*s.Confidence)
		}
		out.Students = append(out.Students, domain.Candidate{
			FirstName:  s.FirstName,
			LastName:   s.LastName,
			Confidence: confidence,
		})
	}
	return out, nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

var _ domain.ExtractionService = (*Client)(nil)
