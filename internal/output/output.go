// Package output provides consistent CLI output formatting for status lines and search results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Aman-CERP/resourcesearch/internal/engine"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
)

// Format selects how result sets are written.
type Format string

// Supported result formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat converts a --format flag value. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", errors.ValidationError(fmt.Sprintf("unknown output format %q (want text or json)", s), nil)
	}
}

// Hit is one matched document.
type Hit struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ResultSet is the outcome of one query against one resource.
type ResultSet struct {
	Resource string `json:"resource"`
	Query    string `json:"query"`
	Count    int    `json:"count"`
	Hits     []Hit  `json:"hits"`
	Error    string `json:"error,omitempty"`
}

// NewResultSet resolves ids against docs, keeping the order of ids.
// Only the named fields are copied into each hit; ids missing from docs
// are kept with no fields.
func NewResultSet(resourceName, query string, ids []string, docs engine.Collection, fields []string) ResultSet {
	byID := make(map[string]engine.Document)
	if docs != nil {
		docs.Each(func(d engine.Document) {
			byID[d.DocumentID()] = d
		})
	}

	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		hit := Hit{ID: id}
		if d, ok := byID[id]; ok && len(fields) > 0 {
			hit.Fields = make(map[string]string, len(fields))
			for _, f := range fields {
				if v := d.FieldValue(f); v != "" {
					hit.Fields[f] = v
				}
			}
		}
		hits = append(hits, hit)
	}

	return ResultSet{
		Resource: resourceName,
		Query:    query,
		Count:    len(hits),
		Hits:     hits,
	}
}

// Writer provides formatted output for CLI.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Code prints a block with each line indented.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Results writes sets in the given format. JSON output is a single array so
// it can be piped into other tools.
func (w *Writer) Results(sets []ResultSet, format Format) error {
	if format == FormatJSON {
		if sets == nil {
			sets = []ResultSet{}
		}
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sets); err != nil {
			return errors.InternalError("encode results", err)
		}
		return nil
	}

	for i, set := range sets {
		if i > 0 {
			w.Newline()
		}
		w.resultText(set)
	}
	return nil
}

func (w *Writer) resultText(set ResultSet) {
	if set.Error != "" {
		w.Errorf("%s %q: %s", set.Resource, set.Query, set.Error)
		return
	}

	w.Statusf("🔍", "%s %q: %d %s", set.Resource, set.Query, set.Count, plural(set.Count, "match", "matches"))
	for _, hit := range set.Hits {
		_, _ = fmt.Fprintf(w.out, "   %s%s\n", hit.ID, describe(hit.Fields))
	}
}

// describe renders fields as " key=value" pairs in key order.
func describe(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s=%s", k, fields[k])
	}
	return b.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
