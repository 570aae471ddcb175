package coordinator

import (
	"context"

	"github.com/Aman-CERP/resourcesearch/internal/resource"
)

// Binding is a coordinator view scoped to one resource.
type Binding struct {
	c    *Coordinator
	name string
}

// Resource returns a Binding for name. The resource need not be
// registered yet.
func (c *Coordinator) Resource(name string) Binding {
	return Binding{c: c, name: name}
}

// Name returns the bound resource name.
func (b Binding) Name() string { return b.name }

// Search searches the bound resource for text.
func (b Binding) Search(ctx context.Context, text string) error {
	return b.c.Search(ctx, b.name, text)
}

// Result returns the bound resource's last result ids.
func (b Binding) Result() []string { return b.c.Result(b.name) }

// IsSearching reports whether a search is in flight.
func (b Binding) IsSearching() bool { return b.c.IsSearching(b.name) }

// State returns the bound resource's full search state.
func (b Binding) State() (resource.IndexState, bool) { return b.c.ResourceIndex(b.name) }
