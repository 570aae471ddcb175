package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resourcesearch/internal/engine"
	"github.com/Aman-CERP/resourcesearch/internal/logging"
	"github.com/Aman-CERP/resourcesearch/internal/store"
)

const notesYAML = `resources:
  notes:
    index: [body]
    documents:
      - {id: n1, body: remember the milk}
      - {id: n2, body: call the plumber}
`

type reloads struct {
	mu   sync.Mutex
	seen map[string]error
}

func (r *reloads) record(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[path] = err
}

func TestSync_AppliesChangedFiles(t *testing.T) {
	// Given: a data file and a store with stale content
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(notesYAML), 0o644))

	s := store.New(map[string]any{"notes": engine.List{}}, store.WithLogger(logging.Discard()))
	events := make(chan []FileEvent, 1)
	r := &reloads{seen: map[string]error{}}

	// When: a modify batch arrives and the channel closes
	events <- []FileEvent{{Path: path, Operation: OpModify}}
	close(events)
	Sync(context.Background(), events, s, logging.Discard(), r.record)

	// Then: the store holds the new collection
	docs, ok := s.Get("notes").(engine.List)
	require.True(t, ok)
	assert.Len(t, docs, 2)
	assert.Contains(t, r.seen, path)
	assert.NoError(t, r.seen[path])
}

func TestSync_ParseErrorKeepsState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resources: [broken"), 0o644))

	initial := engine.List{engine.Record{ID: "keep"}}
	s := store.New(map[string]any{"notes": initial}, store.WithLogger(logging.Discard()))
	events := make(chan []FileEvent, 1)
	r := &reloads{seen: map[string]error{}}

	events <- []FileEvent{{Path: path, Operation: OpModify}}
	close(events)
	Sync(context.Background(), events, s, logging.Discard(), r.record)

	assert.Equal(t, initial, s.Get("notes"))
	assert.Error(t, r.seen[path])
}

func TestSync_DeleteKeepsState(t *testing.T) {
	initial := engine.List{engine.Record{ID: "keep"}}
	s := store.New(map[string]any{"notes": initial}, store.WithLogger(logging.Discard()))
	events := make(chan []FileEvent, 1)

	events <- []FileEvent{{Path: "/gone/notes.yaml", Operation: OpDelete}}
	close(events)
	Sync(context.Background(), events, s, logging.Discard(), nil)

	assert.Equal(t, initial, s.Get("notes"))
}

func TestSync_StopsOnCancel(t *testing.T) {
	s := store.New(nil, store.WithLogger(logging.Discard()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		Sync(ctx, make(chan []FileEvent), s, logging.Discard(), nil)
		close(done)
	}()
	<-done
}
