package errors

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Error kinds understood by the decision engine and the HTTP layer.
const (
	KindValidation  = "ValidationError"
	KindNotFound    = "NotFoundError"
	KindComputation = "ComputationError"
	KindConflict    = "Conflict"
	KindUnavailable = "Unavailable"
	KindRateLimited = "RateLimited"
	KindUnknown     = "Unknown"
)

var (
	// Invalid marks malformed or missing customer data.
	Invalid = NewWithKind(KindValidation)
	// NotFound marks a referenced entity that does not exist.
	NotFound = NewWithKind(KindNotFound)
	// Computation marks an unexpected failure inside a scoring or matching function.
	Computation = NewWithKind(KindComputation)
	// Conflict marks a concurrent write that lost.
	Conflict = NewWithKind(KindConflict)
	// Unavailable marks an infrastructure failure, usually the database.
	Unavailable = NewWithKind(KindUnavailable)
	// RateLimited marks a client that exceeded its request budget.
	RateLimited = NewWithKind(KindRateLimited)
)

// Error is a error type for passing more information
type Error struct {
	// Kind is the returned error type
	Kind string `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`
	// Fields used when there's validation error for a field.
	Fields []FieldError `json:"fields,omitempty"`

	trace []byte
	cause error
}

var _ error = (*Error)(nil)

func New(message string) *Error {
	return &Error{Kind: KindUnknown, Message: message}
}

func NewWithKind(kind string) *Error {
	return &Error{Kind: kind}
}

func Wrap(err error) *Error {
	return &Error{Kind: KindUnknown, cause: err}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	if len(e.trace) > 0 {
		str = str + fmt.Sprintf("\n\nTrace: %s", string(e.trace))
	}
	return str
}

// Reason returns a copy of the error with kind set to given value
func (e *Error) Reason(kind string) *Error {
	err := *e
	err.Kind = kind
	return &err
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the cause set. Sentinels stay untouched.
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// Trace returns a copy of the error carrying the current stack trace
func (e *Error) Trace() *Error {
	err := *e
	stack := make([]byte, 2048)
	n := runtime.Stack(stack, false)
	err.trace = stack[:n]
	return &err
}

func (e *Error) WithFields(fields []FieldError) *Error {
	newError := *e
	newError.Fields = fields
	return &newError
}

// WithField returns a copy of error with the field appended.
func (e *Error) WithField(kind, field, message string) *Error {
	newError := *e
	newError.Fields = append(append([]FieldError(nil), e.Fields...), NewFieldError(kind, field, message))
	return &newError
}

// Is implements the needed interface for errors.Is
// It checks kind for equality
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// KindOf returns the kind of the outermost *Error in the chain, or KindUnknown.
func KindOf(err error) string {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the human readable message of err without the kind
// prefix, cause or trace.
func MessageOf(err error) string {
	var e *Error
	if As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// IsBusiness reports whether err is a recoverable business failure that an
// orchestrator may record and move past. Infrastructure failures are not.
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindComputation, KindConflict:
		return true
	}
	return false
}

// FieldError describes a single invalid field.
type FieldError struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewFieldError(kind, field, message string) FieldError {
	return FieldError{Kind: kind, Field: field, Message: message}
}
