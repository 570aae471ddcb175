package searchapi

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/resourcesearch/internal/engine"
)

// Handle identifies an API instance for the lifetime of the process.
type Handle uint64

// Engine is the index an API keeps per resource name.
type Engine interface {
	IndexDocument(id, text string)
	Search(ctx context.Context, text string) ([]string, error)
	Close() error
}

// EngineFactory builds an empty Engine.
type EngineFactory func() (Engine, error)

// IndexSpec describes how a collection becomes index entries.
// It is either a FieldIndex or an IndexFunc.
type IndexSpec interface {
	isIndexSpec()
}

// FieldIndex indexes each named field of every document under its id.
type FieldIndex []string

func (FieldIndex) isIndexSpec() {}

// IndexFunc indexes a collection itself, once per IndexResource call.
type IndexFunc func(IndexFuncArgs) error

func (IndexFunc) isIndexSpec() {}

// IndexFuncArgs is passed to an IndexFunc.
type IndexFuncArgs struct {
	IndexDocument func(id, text string)
	Resources     engine.Collection
}

// IndexRequest asks for a resource's index to be rebuilt.
type IndexRequest struct {
	ResourceName string
	Spec         IndexSpec
	Resources    engine.Collection
}

// Status is how a PerformSearch call settled.
type Status int

const (
	Succeeded Status = iota
	Cancelled
	Failed
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is returned by PerformSearch. IDs is empty unless Status is
// Succeeded; Err is set only when Status is Failed.
type Outcome struct {
	Status Status
	IDs    []string
	Err    error
}

// Result is delivered to onNext subscribers after a successful search.
// Subscribers share IDs and must not modify it.
type Result struct {
	ResourceName string
	Text         string
	IDs          []string
}

// SearchError is delivered to onError subscribers after a failed search.
type SearchError struct {
	ResourceName string
	Text         string
	Err          error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("search %q on %s: %v", e.Text, e.ResourceName, e.Err)
}

// Unwrap returns the underlying failure.
func (e *SearchError) Unwrap() error { return e.Err }
