package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a task processing failure.
type ErrorClass string

const (
	// ErrorClassConfiguration indicates a missing or malformed spec field, or a
	// processor registered without a handler for its default action.
	ErrorClassConfiguration ErrorClass = "configuration"

	// ErrorClassState indicates the target on disk is in a state the processor
	// refuses to touch, e.g. a directory where a regular file was expected.
	ErrorClassState ErrorClass = "state"

	// ErrorClassTransport indicates a network failure or an unacceptable
	// response from a remote endpoint.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassInputTimeout indicates an interactive read hit its deadline.
	// Processors recover from it locally by substituting the default value.
	ErrorClassInputTimeout ErrorClass = "input-timeout"
)

// TaskError is a classified error raised while processing a task.
type TaskError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource names the task, path or URL involved.
	Resource string `json:"resource,omitempty"`

	// Operation is the action being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details carries extra context.
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Resource != "" && e.Operation != "":
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", msg, e.Resource, e.Operation)
	case e.Resource != "":
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a TaskError of the same class and code.
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newTaskError(class ErrorClass, message string, err error) *TaskError {
	return &TaskError{
		Class:   class,
		Message: message,
		Err:     err,
	}
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(message string, err error) *TaskError {
	return newTaskError(ErrorClassConfiguration, message, err)
}

// NewStateError creates a new state error.
func NewStateError(message string, err error) *TaskError {
	return newTaskError(ErrorClassState, message, err)
}

// NewTransportError creates a new transport error.
func NewTransportError(message string, err error) *TaskError {
	return newTaskError(ErrorClassTransport, message, err)
}

// NewInputTimeoutError creates a new input timeout error.
func NewInputTimeoutError(message string, err error) *TaskError {
	return newTaskError(ErrorClassInputTimeout, message, err)
}

// WithResource adds resource context to an error.
func (e *TaskError) WithResource(resource string) *TaskError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *TaskError) WithOperation(operation string) *TaskError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *TaskError) WithCode(code string) *TaskError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *TaskError) WithDetail(key string, value any) *TaskError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func hasClass(err error, class ErrorClass) bool {
	var e *TaskError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsConfigurationError returns true if the error is classified as configuration.
func IsConfigurationError(err error) bool {
	return hasClass(err, ErrorClassConfiguration)
}

// IsStateError returns true if the error is classified as state.
func IsStateError(err error) bool {
	return hasClass(err, ErrorClassState)
}

// IsTransportError returns true if the error is classified as transport.
func IsTransportError(err error) bool {
	return hasClass(err, ErrorClassTransport)
}

// IsInputTimeout returns true if the error is classified as input timeout.
func IsInputTimeout(err error) bool {
	return hasClass(err, ErrorClassInputTimeout)
}

// ClassOf returns the class of a TaskError in err's chain, or "" if there is none.
func ClassOf(err error) ErrorClass {
	var e *TaskError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeMissingField    = "MISSING_FIELD"
	ErrCodeInvalidField    = "INVALID_FIELD"
	ErrCodeNoHandler       = "NO_HANDLER"
	ErrCodeNotRegularFile  = "NOT_REGULAR_FILE"
	ErrCodeDownloadFailed  = "DOWNLOAD_FAILED"
	ErrCodeUnexpectedCode  = "UNEXPECTED_STATUS"
	ErrCodeScriptFailed    = "SCRIPT_FAILED"
	ErrCodeUnknownKind     = "UNKNOWN_KIND"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeDuplicateKind   = "DUPLICATE_KIND"
	ErrCodeAmbiguousLink   = "AMBIGUOUS_LINK"
	ErrCodeUnresolvableRef = "UNRESOLVABLE_REFERENCE"
)
