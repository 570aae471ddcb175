// Package resource holds the per-resource search state kept in the store
// and the mutations and getters that operate on it.
package resource

import (
	"fmt"
	"sort"

	"github.com/Aman-CERP/resourcesearch/internal/store"
)

// IndexState is the search state of one registered resource.
type IndexState struct {
	IsSearching bool
	Text        string
	Result      []string
	// Err is the last search failure, cleared by the next search.
	Err error `hash:"ignore"`
}

func (s *IndexState) clone() IndexState {
	c := *s
	c.Result = append([]string{}, s.Result...)
	return c
}

// SetInitResource creates empty state for a resource. Existing state is
// reset to empty.
type SetInitResource struct {
	ResourceName string
}

// SetSearchResult records a finished search. Callers drop superseded
// results before committing.
type SetSearchResult struct {
	ResourceName string
	Result       []string
	Text         string
}

// SetSearch marks a search for SearchString as in flight.
type SetSearch struct {
	ResourceName string
	SearchString string
}

// DeleteResource drops a resource's state.
type DeleteResource struct {
	ResourceName string
}

// SetSearchError records a failed search and settles IsSearching.
type SetSearchError struct {
	ResourceName string
	Text         string
	Err          error
}

func (SetInitResource) MutationName() string { return "SET_INIT_RESOURCE" }
func (SetSearchResult) MutationName() string { return "SET_SEARCH_RESULT" }
func (SetSearch) MutationName() string       { return "SET_SEARCH" }
func (DeleteResource) MutationName() string  { return "DELETE_RESOURCE" }
func (SetSearchError) MutationName() string  { return "SET_SEARCH_ERROR" }

// Module is the store module keyed by resource name.
type Module struct {
	resources map[string]*IndexState
}

// NewModule returns an empty module.
func NewModule() *Module {
	return &Module{resources: make(map[string]*IndexState)}
}

// Apply implements store.Module.
func (m *Module) Apply(mut store.Mutation) error {
	switch mut := mut.(type) {
	case SetInitResource:
		m.resources[mut.ResourceName] = &IndexState{Result: []string{}}
	case SetSearchResult:
		st, ok := m.resources[mut.ResourceName]
		if !ok {
			return nil
		}
		st.IsSearching = false
		st.Text = mut.Text
		st.Result = append([]string{}, mut.Result...)
		st.Err = nil
	case SetSearch:
		st, ok := m.resources[mut.ResourceName]
		if !ok {
			return nil
		}
		st.IsSearching = true
		st.Text = mut.SearchString
		st.Err = nil
	case SetSearchError:
		st, ok := m.resources[mut.ResourceName]
		if !ok {
			return nil
		}
		st.IsSearching = false
		st.Text = mut.Text
		st.Err = mut.Err
	case DeleteResource:
		delete(m.resources, mut.ResourceName)
	default:
		return fmt.Errorf("resource module: unsupported mutation %s", mut.MutationName())
	}
	return nil
}

func moduleAt(s store.State, namespace string) (*Module, bool) {
	mod, ok := s.Module(namespace)
	if !ok {
		return nil, false
	}
	m, ok := mod.(*Module)
	return m, ok
}

// ResourceIndex returns a copy of the resource's state.
func ResourceIndex(s store.State, namespace, name string) (IndexState, bool) {
	m, ok := moduleAt(s, namespace)
	if !ok {
		return IndexState{}, false
	}
	st, ok := m.resources[name]
	if !ok {
		return IndexState{}, false
	}
	return st.clone(), true
}

// IsSearching reports whether a search is in flight for the resource.
func IsSearching(s store.State, namespace, name string) bool {
	st, _ := ResourceIndex(s, namespace, name)
	return st.IsSearching
}

// Result returns the resource's last result ids.
func Result(s store.State, namespace, name string) []string {
	st, ok := ResourceIndex(s, namespace, name)
	if !ok {
		return nil
	}
	return st.Result
}

// ResourceNames returns the registered resource names in sorted order.
func ResourceNames(s store.State, namespace string) []string {
	m, ok := moduleAt(s, namespace)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(m.resources))
	for name := range m.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
