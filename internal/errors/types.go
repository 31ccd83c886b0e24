// Package errors defines the structured error taxonomy used by the
// tag-resolution pipeline. Every failure that crosses a package boundary is a
// *TagwritingError carrying a type, a stable code and the offending path, so
// that the operator-facing report and the run policy (abort, degrade, ignore)
// can be decided with errors.As instead of string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeInclude    ErrorType = "include"
	ErrorTypeFetch      ErrorType = "fetch"
	ErrorTypeGeneration ErrorType = "generation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeHook       ErrorType = "hook"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes shared across packages.
const (
	CodeIncludeMissing    = "INCLUDE_MISSING"
	CodeIncludeRead       = "INCLUDE_READ"
	CodeURLTransport      = "URL_TRANSPORT"
	CodeURLStatus         = "URL_STATUS"
	CodeWikipedia         = "WIKIPEDIA"
	CodeMissingAPIKey     = "MISSING_API_KEY"
	CodeMissingModel      = "MISSING_MODEL"
	CodeEmptyResponse     = "EMPTY_RESPONSE"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeRequestFailed     = "REQUEST_FAILED"
	CodePlaceholder       = "PLACEHOLDER"
	CodeAttrs             = "ATTRS"
	CodeRewriteRule       = "REWRITE_RULE"
	CodeConfigRead        = "CONFIG_READ"
	CodeConfigWrite       = "CONFIG_WRITE"
	CodeDocumentRead      = "DOCUMENT_READ"
	CodeDocumentWrite     = "DOCUMENT_WRITE"
	CodeHistoryRead       = "HISTORY_READ"
	CodeHistoryWrite      = "HISTORY_WRITE"
	CodeHookFailed        = "HOOK_FAILED"
)

// TagwritingError is a structured error type with context.
type TagwritingError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *TagwritingError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TagwritingError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *TagwritingError) Is(target error) bool {
	var t *TagwritingError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *TagwritingError) WithContext(key string, value interface{}) *TagwritingError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath records the file the error refers to.
func (e *TagwritingError) WithPath(path string) *TagwritingError {
	e.FilePath = path

	return e
}

// Error creation functions

// NewIncludeError reports an include target that could not be read. It is
// always fatal for the run.
func NewIncludeError(code, path string, cause error) *TagwritingError {
	return &TagwritingError{
		Type:        ErrorTypeInclude,
		Code:        code,
		Message:     "cannot resolve include",
		Cause:       cause,
		FilePath:    path,
		Recoverable: false,
	}
}

// NewFetchError reports a URL or Wikipedia reference that could not be
// fetched. Callers degrade instead of aborting.
func NewFetchError(code, message string, cause error) *TagwritingError {
	return &TagwritingError{
		Type:        ErrorTypeFetch,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewGenerationError reports a failure of the text-generation service.
func NewGenerationError(code, message string, cause error) *TagwritingError {
	return &TagwritingError{
		Type:        ErrorTypeGeneration,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *TagwritingError {
	return &TagwritingError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *TagwritingError {
	return &TagwritingError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewHookError creates a hook execution error.
func NewHookError(message string, cause error) *TagwritingError {
	return &TagwritingError{
		Type:        ErrorTypeHook,
		Code:        CodeHookFailed,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *TagwritingError {
	return &TagwritingError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error recovery and handling utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var te *TagwritingError
	if errors.As(err, &te) {
		return te.Recoverable
	}

	return false
}

// IsType reports whether err is a *TagwritingError of the given type.
func IsType(err error, errType ErrorType) bool {
	var te *TagwritingError
	if errors.As(err, &te) {
		return te.Type == errType
	}

	return false
}

// IsIncludeError checks if an error is an include resolution failure.
func IsIncludeError(err error) bool {
	return IsType(err, ErrorTypeInclude)
}

// IsFetchError checks if an error is a reference fetch failure.
func IsFetchError(err error) bool {
	return IsType(err, ErrorTypeFetch)
}

// IsGenerationError checks if an error came from the generation service.
func IsGenerationError(err error) bool {
	return IsType(err, ErrorTypeGeneration)
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return IsType(err, ErrorTypeConfig)
}

// GetErrorType returns the type of a TagwritingError, or ErrorTypeInternal
// for foreign errors.
func GetErrorType(err error) ErrorType {
	var te *TagwritingError
	if errors.As(err, &te) {
		return te.Type
	}

	return ErrorTypeInternal
}
