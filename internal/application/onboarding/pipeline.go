package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	domain "github.com/mohammadpnp/roster-onboarding/internal/domain/roster"
)

const (
	msgNoStudents       = "No student names found in the input text"
	msgFallback         = "AI parsing unavailable, using basic parsing"
	truncationMarker    = "\n[input truncated]"
	defaultMaxInputRune = 8000
)

type PipelineConfig struct {
	// MaxInputRunes bounds the text sent to the extraction service.
	MaxInputRunes int
	// MinRecordConfidence drops service records scored below it.
	MinRecordConfidence float64
	// Gate thresholds.
	MinOverallConfidence float64
	LowRecordConfidence  float64
	MaxPlausibleRecords  int
	// DisableFallback turns service failures into error results instead of heuristic parsing.
	DisableFallback bool
}

// IngestionPipeline turns raw text into a confidence-scored roster candidate.
// Extract never fails; problems are reported in the result's Errors.
type IngestionPipeline interface {
	Extract(ctx context.Context, rawText string) domain.ExtractionResult
}

type ingestionPipeline struct {
	service   domain.ExtractionService
	creds     domain.CredentialGenerator
	heuristic HeuristicExtractor
	cfg       PipelineConfig
	log       logrus.FieldLogger
	metrics   *Metrics
}

func NewIngestionPipeline(service domain.ExtractionService, creds domain.CredentialGenerator, cfg PipelineConfig, log logrus.FieldLogger, metrics *Metrics) IngestionPipeline {
	if cfg.MaxInputRunes <= 0 {
		cfg.MaxInputRunes = defaultMaxInputRune
	}
	if cfg.MinRecordConfidence <= 0 {
		cfg.MinRecordConfidence = 0.4
	}
	if cfg.MinOverallConfidence <= 0 {
		cfg.MinOverallConfidence = 0.7
	}
	if cfg.LowRecordConfidence <= 0 {
		cfg.LowRecordConfidence = 0.6
	}
	if cfg.MaxPlausibleRecords <= 0 {
		cfg.MaxPlausibleRecords = 50
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &ingestionPipeline{
		service: service,
		creds:   creds,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
}

func (p *ingestionPipeline) Extract(ctx context.Context, rawText string) domain.ExtractionResult {
	text := strings.TrimSpace(rawText)
	if text == "" {
		p.metrics.observeExtraction(outcomeEmpty, true)
		return domain.ExtractionResult{
			Records:         []domain.Record{},
			Errors:          []string{msgNoStudents},
			Warnings:        []string{},
			ContentType:     domain.ContentTypeUnlikelyStudent,
			NeedsValidation: true,
			Source:          domain.SourceNone,
		}
	}

	var warnings []string
	if truncated, ok := truncateRunes(text, p.cfg.MaxInputRunes); ok {
		text = truncated + truncationMarker
		warnings = append(warnings, fmt.Sprintf("Input was longer than %d characters and was truncated", p.cfg.MaxInputRunes))
	}

	resp, err := p.service.Extract(ctx, text)
	if err != nil {
		return p.onServiceError(rawText, warnings, err)
	}

	result := p.fromService(resp, warnings)
	p.log.WithFields(logrus.Fields{
		"content_type":     result.ContentType,
		"confidence":       result.Confidence,
		"records":          len(result.Records),
		"needs_validation": result.NeedsValidation,
	}).Info("extraction completed")
	p.metrics.observeExtraction(outcomeService, result.NeedsValidation)
	return result
}

func (p *ingestionPipeline) fromService(resp domain.ServiceResponse, warnings []string) domain.ExtractionResult {
	result := domain.ExtractionResult{
		Records:          make([]domain.Record, 0, len(resp.Students)),
		RecordConfidence: make(map[string]float64, len(resp.Students)),
		Errors:           append([]string{}, resp.Errors...),
		Warnings:         append(append([]string{}, warnings...), resp.Warnings...),
		ContentType:      resp.ContentType,
		Confidence:       resp.Confidence,
		Source:           domain.SourceService,
	}

	dropped := 0
	lowestConfidence := 1.0
	for _, c := range resp.Students {
		if c.Confidence < p.cfg.MinRecordConfidence || strings.TrimSpace(c.FirstName) == "" {
			dropped++
			continue
		}
		r := p.newRecord(strings.TrimSpace(c.FirstName), domain.InitialOf(c.LastName))
		result.Records = append(result.Records, r)
		result.RecordConfidence[r.ID] = c.Confidence
		lowestConfidence = min(lowestConfidence, c.Confidence)
	}
	if dropped > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Skipped %d low-confidence entries", dropped))
	}
	if len(result.Records) == 0 && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, msgNoStudents)
	}

	result.NeedsValidation = result.ContentType != domain.ContentTypeStudentList ||
		result.Confidence < p.cfg.MinOverallConfidence ||
		len(result.Records) == 0 ||
		len(result.Records) > p.cfg.MaxPlausibleRecords ||
		lowestConfidence < p.cfg.LowRecordConfidence
	return result
}

// onServiceError parses the original text heuristically, or reports the failure when fallback is disabled.
func (p *ingestionPipeline) onServiceError(rawText string, warnings []string, err error) domain.ExtractionResult {
	message := (&domain.ExtractionError{Class: domain.ErrorClassUnavailable, Err: err}).UserMessage()
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		message = extErr.UserMessage()
	}

	entry := p.log.WithError(err)
	if p.cfg.DisableFallback {
		entry.Warn("extraction failed")
		p.metrics.observeExtraction(outcomeFailed, true)
		return domain.ExtractionResult{
			Records:         []domain.Record{},
			Errors:          []string{message},
			Warnings:        append([]string{}, warnings...),
			ContentType:     domain.ContentTypeUnlikelyStudent,
			NeedsValidation: true,
			Source:          domain.SourceNone,
		}
	}
	entry.Warn("extraction failed, falling back to line parsing")

	candidates, lineWarnings := p.heuristic.Extract(rawText)
	result := domain.ExtractionResult{
		Records:          make([]domain.Record, 0, len(candidates)),
		RecordConfidence: make(map[string]float64, len(candidates)),
		Errors:           []string{},
		Warnings:         append(append(append([]string{}, warnings...), msgFallback, message), lineWarnings...),
		ContentType:      domain.ContentTypeStudentList,
		Confidence:       HeuristicConfidence,
		NeedsValidation:  true,
		Source:           domain.SourceHeuristic,
	}
	if len(lineWarnings) > 0 {
		result.ContentType = domain.ContentTypeMixedContent
	}
	for _, c := range candidates {
		r := p.newRecord(c.FirstName, domain.InitialOf(c.LastName))
		result.Records = append(result.Records, r)
		result.RecordConfidence[r.ID] = c.Confidence
	}
	if len(result.Records) == 0 {
		result.Errors = append(result.Errors, msgNoStudents)
		result.ContentType = domain.ContentTypeUnlikelyStudent
	}

	p.metrics.observeExtraction(outcomeFallback, true)
	return result
}

func (p *ingestionPipeline) newRecord(firstName, lastInitial string) domain.Record {
	return domain.Record{
		ID:          p.creds.NewID(),
		FirstName:   firstName,
		LastInitial: lastInitial,
		Password:    p.creds.Password(),
		Username:    p.creds.Username(firstName, lastInitial),
	}
}

func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]), true
}
