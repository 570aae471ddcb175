package errors

import (
	stderrors "errors"
	"fmt"
)

// ResourceError is the structured error type for resourcesearch.
// It carries a stable code for errors.Is matching plus context for logs and CLI output.
type ResourceError struct {
	// Code is the unique error code (e.g., "ERR_404_RESOURCE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category.
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrInvalidIndexSpec = &ResourceError{Code: ErrCodeInvalidIndexSpec}
	ErrResourceNotFound = &ResourceError{Code: ErrCodeResourceNotFound}
	ErrSearchFailed     = &ResourceError{Code: ErrCodeSearchFailed}
	ErrModuleNotFound   = &ResourceError{Code: ErrCodeModuleNotFound}
	ErrModuleExists     = &ResourceError{Code: ErrCodeModuleExists}
)

// Error implements the error interface.
func (e *ResourceError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ResourceError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *ResourceError) Is(target error) bool {
	if t, ok := target.(*ResourceError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ResourceError) WithDetail(key, value string) *ResourceError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ResourceError) WithSuggestion(suggestion string) *ResourceError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ResourceError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *ResourceError {
	return &ResourceError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a ResourceError from an existing error.
func Wrap(code string, err error) *ResourceError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidIndexSpec reports an index argument that is neither a field list nor an index function.
func InvalidIndexSpec(resourceName string, spec any) *ResourceError {
	return New(ErrCodeInvalidIndexSpec,
		fmt.Sprintf("expected resource index to be either a list of fields or an index function, got %T", spec), nil).
		WithDetail("resource", resourceName)
}

// ResourceNotFound reports an operation on a resource name that is not registered.
func ResourceNotFound(resourceName string) *ResourceError {
	return New(ErrCodeResourceNotFound,
		fmt.Sprintf("resource %q is not registered", resourceName), nil).
		WithDetail("resource", resourceName)
}

// SearchFailure reports an engine-level error during a query.
func SearchFailure(resourceName string, cause error) *ResourceError {
	msg := fmt.Sprintf("search on resource %q failed", resourceName)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return New(ErrCodeSearchFailed, msg, cause).WithDetail("resource", resourceName)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ResourceError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// DataError creates an error for unreadable or malformed resource data.
func DataError(code, path string, cause error) *ResourceError {
	return New(code, fmt.Sprintf("cannot load %s: %v", path, cause), cause).WithDetail("path", path)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *ResourceError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ResourceError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var re *ResourceError
	if stderrors.As(err, &re) {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ResourceError.
// Returns empty string if no ResourceError is in the chain.
func GetCode(err error) string {
	var re *ResourceError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ""
}
