package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ProblemDetails represents RFC 7807 compliant error response
// RFC 7807: Problem Details for HTTP APIs
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence of the problem
	Detail string `json:"detail"`
	// Instance is a URI reference that identifies the specific occurrence of the problem
	Instance string `json:"instance,omitempty"`
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// TraceID for request tracing and debugging
	TraceID string `json:"traceId,omitempty"`
	// Errors contains field-specific validation errors
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents field-specific validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const (
	TypeValidationError  = "https://kycengine.dev/errors/validation-error"
	TypeNotFound         = "https://kycengine.dev/errors/not-found"
	TypeComputationError = "https://kycengine.dev/errors/computation-error"
	TypeConflict         = "https://kycengine.dev/errors/conflict"
	TypeUnavailable      = "https://kycengine.dev/errors/unavailable"
	TypeRateLimited      = "https://kycengine.dev/errors/rate-limited"
	TypeInternalError    = "https://kycengine.dev/errors/internal-error"
)

const (
	TitleValidationError  = "Validation Error"
	TitleNotFound         = "Not Found"
	TitleComputationError = "Computation Error"
	TitleConflict         = "Conflict"
	TitleUnavailable      = "Service Unavailable"
	TitleRateLimited      = "Too Many Requests"
	TitleInternalError    = "Internal Server Error"
)

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// AddValidationError adds a single validation error
func (p *ProblemDetails) AddValidationError(field, message, code string) *ProblemDetails {
	p.Errors = append(p.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
	return p
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// StatusCode maps an error kind to its HTTP status.
func StatusCode(kind string) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindComputation:
		return http.StatusUnprocessableEntity
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ToProblemDetails converts an Error into RFC 7807 ProblemDetails
func (e *Error) ToProblemDetails(instance string) *ProblemDetails {
	var problemType, title string

	switch e.Kind {
	case KindValidation:
		problemType, title = TypeValidationError, TitleValidationError
	case KindNotFound:
		problemType, title = TypeNotFound, TitleNotFound
	case KindComputation:
		problemType, title = TypeComputationError, TitleComputationError
	case KindConflict:
		problemType, title = TypeConflict, TitleConflict
	case KindUnavailable:
		problemType, title = TypeUnavailable, TitleUnavailable
	case KindRateLimited:
		problemType, title = TypeRateLimited, TitleRateLimited
	default:
		problemType, title = TypeInternalError, TitleInternalError
	}

	detail := e.Message
	if detail == "" {
		detail = title
	}
	pd := NewProblemDetails(problemType, title, StatusCode(e.Kind), detail, instance)
	for _, f := range e.Fields {
		pd.AddValidationError(f.Field, f.Message, f.Kind)
	}
	return pd
}

// ProblemFor converts any error into ProblemDetails. Errors outside the
// taxonomy are reported as internal errors without leaking their text.
func ProblemFor(err error, instance string) *ProblemDetails {
	var e *Error
	if As(err, &e) {
		return e.ToProblemDetails(instance)
	}
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, "unexpected error", instance)
}
