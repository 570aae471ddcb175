// Package errors provides structured error handling for resourcesearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Data file errors
//   - 4XX: Validation and lookup errors
//   - 5XX: Internal and search errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryData indicates errors reading or parsing resource data.
	CategoryData Category = "DATA"
	// CategoryValidation indicates invalid arguments or unknown names.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the current call must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Data errors (200-299)
	ErrCodeDataRead  = "ERR_201_DATA_READ"
	ErrCodeDataParse = "ERR_202_DATA_PARSE"

	// Validation errors (400-499)
	ErrCodeInvalidIndexSpec = "ERR_401_INVALID_INDEX_SPEC"
	ErrCodeInvalidInput     = "ERR_402_INVALID_INPUT"
	ErrCodeResourceNotFound = "ERR_404_RESOURCE_NOT_FOUND"
	ErrCodeModuleNotFound   = "ERR_405_MODULE_NOT_FOUND"
	ErrCodeModuleExists     = "ERR_406_MODULE_EXISTS"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryData
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Invalid index specs and unknown resources abort the call that raised them.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInvalidIndexSpec, ErrCodeResourceNotFound, ErrCodeConfigInvalid:
		return SeverityFatal
	case ErrCodeSearchFailed:
		return SeverityWarning
	default:
		return SeverityError
	}
}
