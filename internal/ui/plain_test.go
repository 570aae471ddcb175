package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resourcesearch/internal/searchapi"
	"github.com/Aman-CERP/resourcesearch/internal/telemetry"
)

// syncBuffer guards a bytes.Buffer shared between a session and a test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func plainConfig(input string, out *syncBuffer) Config {
	return NewConfig(strings.NewReader(input), out,
		WithForcePlain(true),
		WithPollInterval(time.Millisecond),
	)
}

func TestPlainSession_SearchesEveryResourcePerLine(t *testing.T) {
	// Given: two queries on stdin
	out := &syncBuffer{}
	backend := newFakeBackend()
	s := NewPlainSession(plainConfig("first\nsecond\n", out), backend)

	// When: running to end of input
	require.NoError(t, s.Run(context.Background()))

	// Then: each query hit every resource and the results were printed
	assert.Equal(t, []string{"documents:first", "notes:first", "documents:second", "notes:second"}, backend.searched())
	text := out.String()
	assert.Contains(t, text, `documents "first": 1 match`)
	assert.Contains(t, text, `notes "first": 1 match`)
	assert.Contains(t, text, `documents "second": 1 match`)
	assert.Contains(t, text, `notes "second": 0 matches`)
}

func TestPlainSession_EmptyLineListsAll(t *testing.T) {
	out := &syncBuffer{}
	s := NewPlainSession(plainConfig("\n", out), newFakeBackend())

	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), `documents "": 2 matches`)
}

func TestPlainSession_QuitStopsReading(t *testing.T) {
	// Given: a quit command followed by a query
	out := &syncBuffer{}
	backend := newFakeBackend()
	s := NewPlainSession(plainConfig(":quit\nfirst\n", out), backend)

	// When: running
	require.NoError(t, s.Run(context.Background()))

	// Then: the query after :quit was never issued
	assert.Empty(t, backend.searched())
}

func TestPlainSession_ListsResources(t *testing.T) {
	out := &syncBuffer{}
	s := NewPlainSession(plainConfig(":resources\n", out), newFakeBackend())

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, "   documents\n   notes\n", out.String())
}

// statsBackend adds a metrics collector to fakeBackend.
type statsBackend struct {
	*fakeBackend
	metrics *telemetry.Metrics
}

func (b statsBackend) Metrics() *telemetry.Metrics { return b.metrics }

func TestPlainSession_Stats(t *testing.T) {
	// Given: a backend that has recorded one search
	out := &syncBuffer{}
	m := telemetry.New(telemetry.DefaultConfig())
	m.Record(telemetry.SearchEvent{Resource: "documents", Query: "first", Status: searchapi.Succeeded, ResultCount: 1})
	s := NewPlainSession(plainConfig(":stats\n", out), statsBackend{fakeBackend: newFakeBackend(), metrics: m})

	// When: asking for statistics
	require.NoError(t, s.Run(context.Background()))

	// Then: the snapshot is printed
	assert.Contains(t, out.String(), "📊 1 search since ")
	assert.Contains(t, out.String(), "resources: documents=1")
}

func TestPlainSession_StatsUnavailable(t *testing.T) {
	out := &syncBuffer{}
	s := NewPlainSession(plainConfig(":stats\n", out), newFakeBackend())

	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, out.String(), "search statistics are not available")
}

func TestPlainSession_ReportsFailedSearch(t *testing.T) {
	// Given: a resource whose searches fail
	out := &syncBuffer{}
	backend := newFakeBackend()
	backend.fail["notes"] = assert.AnError
	s := NewPlainSession(plainConfig("first\n", out), backend)

	// When: running a query
	require.NoError(t, s.Run(context.Background()))

	// Then: the healthy resource prints results and the failure is flagged
	text := out.String()
	assert.Contains(t, text, `documents "first": 1 match`)
	assert.Contains(t, text, `❌ notes "first"`)
}

func TestPlainSession_WaitsForSettledResults(t *testing.T) {
	// Given: a backend that holds searches in flight
	r, w := io.Pipe()
	out := &syncBuffer{}
	backend := newFakeBackend()
	backend.hold = true
	s := NewPlainSession(NewConfig(r, out, WithPollInterval(time.Millisecond)), backend)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	// When: a query is entered
	_, err := w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(backend.searched()) == 2 }, time.Second, time.Millisecond)

	// Then: nothing is printed until the searches settle
	time.Sleep(20 * time.Millisecond)
	assert.NotContains(t, out.String(), "documents")

	backend.release()
	require.Eventually(t, func() bool { return strings.Contains(out.String(), `documents "first"`) }, time.Second, time.Millisecond)

	require.NoError(t, w.Close())
	require.NoError(t, <-done)
}

func TestPlainSession_ContextCancelEndsRun(t *testing.T) {
	// Given: an input that never ends
	r, _ := io.Pipe()
	s := NewPlainSession(NewConfig(r, &syncBuffer{}), newFakeBackend())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// When: the context is cancelled
	cancel()

	// Then: Run returns without error
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPlainSession_Notify(t *testing.T) {
	out := &syncBuffer{}
	s := NewPlainSession(plainConfig("", out), newFakeBackend())

	s.Notify(Notice{Level: LevelInfo, Message: "reloaded data.yaml"})
	s.Notify(Notice{Level: LevelWarn, Message: "data.yaml removed"})
	s.Notify(Notice{Level: LevelError, Message: "reload failed"})

	text := out.String()
	assert.Contains(t, text, "📂 reloaded data.yaml")
	assert.Contains(t, text, "⚠️  data.yaml removed")
	assert.Contains(t, text, "❌ reload failed")
}
