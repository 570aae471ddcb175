package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/resourcesearch/internal/logging"
)

func newTestDebouncer(window time.Duration) *Debouncer {
	return NewDebouncer(window, logging.Discard())
}

func nextBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced events")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := newTestDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "/data/a.yaml", Operation: OpModify, Timestamp: time.Now()})

	// Then: it passes through after the window
	events := nextBatch(t, d, 500*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "/data/a.yaml", events[0].Path)
	assert.Equal(t, OpModify, events[0].Operation)
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name string
		ops  []Operation
		want []Operation
	}{
		{"modify bursts collapse", []Operation{OpModify, OpModify, OpModify}, []Operation{OpModify}},
		{"create then modify stays create", []Operation{OpCreate, OpModify}, []Operation{OpCreate}},
		{"modify then delete is delete", []Operation{OpModify, OpDelete}, []Operation{OpDelete}},
		{"delete then create is modify", []Operation{OpDelete, OpCreate}, []Operation{OpModify}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDebouncer(30 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/data/a.yaml", Operation: op, Timestamp: time.Now()})
			}

			events := nextBatch(t, d, 500*time.Millisecond)
			got := make([]Operation, 0, len(events))
			for _, e := range events {
				got = append(got, e.Operation)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	d := newTestDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/data/tmp.yaml", Operation: OpCreate})
	d.Add(FileEvent{Path: "/data/tmp.yaml", Operation: OpDelete})

	select {
	case events := <-d.Output():
		t.Fatalf("expected no events, got %v", events)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_DifferentFiles_SortedBatch(t *testing.T) {
	d := newTestDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/data/b.yaml", Operation: OpModify})
	d.Add(FileEvent{Path: "/data/a.yaml", Operation: OpCreate})

	events := nextBatch(t, d, 500*time.Millisecond)
	require.Len(t, events, 2)
	assert.Equal(t, "/data/a.yaml", events[0].Path)
	assert.Equal(t, "/data/b.yaml", events[1].Path)
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	d := newTestDebouncer(time.Hour)
	d.Add(FileEvent{Path: "/data/a.yaml", Operation: OpModify})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "/data/a.yaml", Operation: OpModify})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
