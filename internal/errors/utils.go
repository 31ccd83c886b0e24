package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Wrap wraps an error with additional context, creating a TagwritingError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *TagwritingError {
	if err == nil {
		return nil
	}

	// Keep the path and context of an inner TagwritingError
	var te *TagwritingError
	if errors.As(err, &te) {
		return &TagwritingError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       te,
			Context:     te.Context,
			FilePath:    te.FilePath,
			Recoverable: te.Recoverable,
		}
	}

	return &TagwritingError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeFetch || errType == ErrorTypeHook,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *TagwritingError {
	wrapped := Wrap(err, ErrorTypeIO, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *TagwritingError {
	wrapped := Wrap(err, ErrorTypeConfig, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// WrapGeneration wraps an error returned by the generation backend
func WrapGeneration(err error, code, message string) *TagwritingError {
	wrapped := Wrap(err, ErrorTypeGeneration, code, message)
	if wrapped != nil {
		wrapped.Recoverable = false
	}
	return wrapped
}

// FormatError formats an error for user display. The context of a
// TagwritingError is appended as sorted key=value pairs.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var te *TagwritingError
	if !errors.As(err, &te) || len(te.Context) == 0 {
		return err.Error()
	}

	keys := make([]string, 0, len(te.Context))
	for k := range te.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, te.Context[k]))
	}
	return fmt.Sprintf("%s (%s)", err.Error(), strings.Join(pairs, ", "))
}

// GetErrorContext extracts context information from a TagwritingError
func GetErrorContext(err error) map[string]interface{} {
	var te *TagwritingError
	if errors.As(err, &te) {
		context := make(map[string]interface{})
		for k, v := range te.Context {
			context[k] = v
		}
		if te.FilePath != "" {
			context["file"] = te.FilePath
		}
		context["type"] = string(te.Type)
		context["code"] = te.Code
		context["recoverable"] = te.Recoverable
		return context
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// CombineErrors combines multiple errors into a single error with context
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}

	messages := make([]string, 0, len(nonNil))
	for _, err := range nonNil {
		messages = append(messages, err.Error())
	}

	errType := ErrorTypeInternal
	if allOfType(nonNil, ErrorTypeConfig) {
		errType = ErrorTypeConfig
	}

	return &TagwritingError{
		Type:    errType,
		Code:    "MULTIPLE_ERRORS",
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNil)),
		Cause:   errors.Join(nonNil...),
		Context: map[string]interface{}{
			"error_count": len(nonNil),
			"errors":      messages,
		},
		Recoverable: false,
	}
}

func allOfType(errs []error, errType ErrorType) bool {
	for _, err := range errs {
		if !IsType(err, errType) {
			return false
		}
	}
	return true
}
