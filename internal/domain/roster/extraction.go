package roster

import (
	"fmt"
	"net/http"
)

type ContentType string

const (
	ContentTypeStudentList     ContentType = "student_list"
	ContentTypeMixedContent    ContentType = "mixed_content"
	ContentTypeUnlikelyStudent ContentType = "unlikely_student_content"
)

// Valid reports whether c is one of the classifications the extraction contract allows.
func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeStudentList, ContentTypeMixedContent, ContentTypeUnlikelyStudent:
		return true
	}
	return false
}

// ExtractionSource records which extractor produced a result.
type ExtractionSource string

const (
	SourceService   ExtractionSource = "service"
	SourceHeuristic ExtractionSource = "heuristic"
	SourceNone      ExtractionSource = "none"
)

// Candidate is a single name as returned by the extraction service.
type Candidate struct {
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Confidence float64 `json:"confidence"`
}

// ServiceResponse is the structured output of the extraction service.
type ServiceResponse struct {
	Students    []Candidate `json:"students"`
	ContentType ContentType `json:"contentType"`
	Confidence  float64     `json:"confidence"`
	Warnings    []string    `json:"warnings"`
	Errors      []string    `json:"errors"`
}

// ExtractionResult is produced once per ingestion attempt and treated as immutable afterwards.
type ExtractionResult struct {
	Records          []Record           `json:"records"`
	RecordConfidence map[string]float64 `json:"record_confidence,omitempty"`
	Errors           []string           `json:"errors"`
	Warnings         []string           `json:"warnings"`
	ContentType      ContentType        `json:"content_type"`
	Confidence       float64            `json:"confidence"`
	NeedsValidation  bool               `json:"needs_validation"`
	Source           ExtractionSource   `json:"source"`
}

// Failed reports whether the attempt produced nothing usable.
func (r ExtractionResult) Failed() bool {
	return len(r.Records) == 0 && len(r.Errors) > 0
}

type ErrorClass string

const (
	ErrorClassPayloadTooLarge ErrorClass = "payload_too_large"
	ErrorClassClient          ErrorClass = "client"
	ErrorClassUnavailable     ErrorClass = "unavailable"
	ErrorClassMalformed       ErrorClass = "malformed_response"
)

// ClassifyStatus maps an HTTP status code to an error class.
func ClassifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusRequestEntityTooLarge:
		return ErrorClassPayloadTooLarge
	case code >= 400 && code < 500:
		return ErrorClassClient
	default:
		return ErrorClassUnavailable
	}
}

// ExtractionError is a transport or decoding failure of the extraction service.
type ExtractionError struct {
	Class      ErrorClass
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extraction %s (status %d): %v", e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("extraction %s: %v", e.Class, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the operator for this class of failure.
func (e *ExtractionError) UserMessage() string {
	switch e.Class {
	case ErrorClassPayloadTooLarge:
		return "The input is too large for AI parsing. Try a shorter list or split it into smaller parts."
	case ErrorClassClient:
		return "AI parsing rejected the request. Please check your API key or try again."
	case ErrorClassMalformed:
		return "AI parsing returned a response that could not be read. Please try again."
	default:
		return "AI parsing is unavailable right now. Please try again."
	}
}
