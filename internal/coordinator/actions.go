package coordinator

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/resourcesearch/internal/engine"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/searchapi"
)

// Action is a request handled by Dispatch.
type Action interface {
	ActionName() string
}

// ReceiveResult writes a finished search into the store.
type ReceiveResult struct {
	ResourceName string
	Result       []string
	Text         string
}

// Search records SearchString as the resource's query and searches for it.
type Search struct {
	ResourceName string
	SearchString string
}

// IndexResource rebuilds the resource's index from Resources. A search
// in flight is repeated against the new index; otherwise nothing is
// searched.
type IndexResource struct {
	ResourceName string
	Index        searchapi.IndexSpec
	Resources    engine.Collection
}

// PerformSearch starts a search without touching the stored query.
type PerformSearch struct {
	ResourceName string
	SearchString string
}

func (ReceiveResult) ActionName() string { return "receiveResult" }
func (Search) ActionName() string        { return "search" }
func (IndexResource) ActionName() string { return "searchApi/indexResource" }
func (PerformSearch) ActionName() string { return "searchApi/performSearch" }

// Dispatch runs a.
func (c *Coordinator) Dispatch(ctx context.Context, a Action) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	switch a := a.(type) {
	case ReceiveResult:
		if _, ok := c.lookup(a.ResourceName); !ok {
			return errors.ResourceNotFound(a.ResourceName)
		}
		c.receiveResult(a.ResourceName, a.Result, a.Text)
		return nil
	case Search:
		return c.search(ctx, a.ResourceName, a.SearchString)
	case IndexResource:
		reg, ok := c.lookup(a.ResourceName)
		if !ok {
			return errors.ResourceNotFound(a.ResourceName)
		}
		spec := a.Index
		if spec == nil {
			spec = reg.cfg.Index
		}
		err := reg.api.IndexResource(searchapi.IndexRequest{
			ResourceName: a.ResourceName,
			Spec:         spec,
			Resources:    a.Resources,
		})
		if err != nil {
			return err
		}
		// Swapping the engine cancels a search in flight; run it again
		// against the new index so the resource settles.
		if c.IsSearching(a.ResourceName) {
			c.mu.Lock()
			text := reg.latest
			c.mu.Unlock()
			return c.performSearch(a.ResourceName, text)
		}
		return nil
	case PerformSearch:
		return c.performSearch(a.ResourceName, a.SearchString)
	case nil:
		return errors.ValidationError("nil action", nil)
	default:
		return errors.ValidationError(fmt.Sprintf("unsupported action %s", a.ActionName()), nil)
	}
}
