package watcher

import "time"

// Operation is the kind of change seen for a file.
type Operation int

const (
	// OpCreate indicates the file appeared.
	OpCreate Operation = iota
	// OpModify indicates the file's content changed.
	OpModify
	// OpDelete indicates the file is gone.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one watched file.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a FileWatcher.
type Options struct {
	// DebounceWindow is the quiet time before a batch is emitted.
	// Default: 200ms
	DebounceWindow time.Duration

	// EventBufferSize is the number of batches buffered for readers.
	// Default: 16
	EventBufferSize int
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
