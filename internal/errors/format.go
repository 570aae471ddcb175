package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// asResourceError finds a ResourceError in the chain or wraps err as internal.
func asResourceError(err error) *ResourceError {
	var re *ResourceError
	if stderrors.As(err, &re) {
		return re
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	re := asResourceError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", re.Message))
	if re.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", re.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", re.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error for --format json output.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	re := asResourceError(err)
	je := jsonError{
		Code:       re.Code,
		Message:    re.Message,
		Category:   string(re.Category),
		Severity:   string(re.Severity),
		Details:    re.Details,
		Suggestion: re.Suggestion,
	}
	if re.Cause != nil {
		je.Cause = re.Cause.Error()
	}

	return json.Marshal(je)
}

// LogAttrs flattens an error into slog-friendly key-value pairs.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var re *ResourceError
	if !stderrors.As(err, &re) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", re.Code,
		"error", re.Message,
		"category", string(re.Category),
	}
	for k, v := range re.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
