// Package ui provides the interactive search session for the watch command:
// a bubbletea TUI for terminals and a line-oriented plain mode for pipes.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/resourcesearch/internal/output"
	"github.com/Aman-CERP/resourcesearch/internal/resource"
	"github.com/Aman-CERP/resourcesearch/internal/telemetry"
)

// Backend is the search surface a session drives.
// *coordinator.Coordinator implements it.
type Backend interface {
	ResourceNames() []string
	Search(ctx context.Context, name, text string) error
	ResourceIndex(name string) (resource.IndexState, bool)
}

// StatsSource is implemented by backends that collect search metrics.
type StatsSource interface {
	Metrics() *telemetry.Metrics
}

// ResolveFunc turns the matched ids of one resource into a displayable result set.
type ResolveFunc func(resourceName, query string, ids []string) output.ResultSet

// Level classifies a notice.
type Level int

const (
	// LevelInfo is a routine notice such as a reloaded data file.
	LevelInfo Level = iota
	// LevelWarn is a notice the user should look at.
	LevelWarn
	// LevelError is a failed background operation.
	LevelError
)

// Notice is a message from outside the session, shown alongside results.
type Notice struct {
	Level   Level
	Message string
	Time    time.Time
}

// Session runs an interactive search loop until the user quits or ctx ends.
type Session interface {
	// Run blocks until the session ends. Context cancellation is not an error.
	Run(ctx context.Context) error

	// Notify shows a notice. Safe to call from any goroutine.
	Notify(n Notice)
}

// Config configures a session.
type Config struct {
	Input      io.Reader
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string
	Resolve    ResolveFunc
	// PollInterval is how often search state is re-read while waiting for results.
	PollInterval time.Duration
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text mode.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the title shown in the TUI header.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// WithResolve sets how matched ids are rendered.
func WithResolve(fn ResolveFunc) ConfigOption {
	return func(c *Config) {
		c.Resolve = fn
	}
}

// WithPollInterval sets the state polling interval.
func WithPollInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// NewConfig creates a new Config reading from input and writing to out.
func NewConfig(input io.Reader, out io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Input:        input,
		Output:       out,
		PollInterval: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Resolve == nil {
		cfg.Resolve = func(name, query string, ids []string) output.ResultSet {
			return output.NewResultSet(name, query, ids, nil, nil)
		}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}

	return cfg
}

// NewSession returns a TUI session for interactive terminals, and a plain
// session for CI environments, pipes, or when plain mode is forced.
func NewSession(cfg Config, backend Backend) Session {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainSession(cfg, backend)
	}

	tui, err := NewTUISession(cfg, backend)
	if err != nil {
		return NewPlainSession(cfg, backend)
	}

	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// snapshot reads the index state of every resource, skipping any that
// were removed since names was taken.
func snapshot(backend Backend, names []string) map[string]resource.IndexState {
	states := make(map[string]resource.IndexState, len(names))
	for _, name := range names {
		if st, ok := backend.ResourceIndex(name); ok {
			states[name] = st
		}
	}
	return states
}

// resultSets renders states in names order.
func resultSets(resolve ResolveFunc, names []string, states map[string]resource.IndexState) []output.ResultSet {
	sets := make([]output.ResultSet, 0, len(names))
	for _, name := range names {
		st, ok := states[name]
		if !ok {
			continue
		}
		if st.Err != nil {
			sets = append(sets, output.ResultSet{
				Resource: name,
				Query:    st.Text,
				Hits:     []output.Hit{},
				Error:    st.Err.Error(),
			})
			continue
		}
		sets = append(sets, resolve(name, st.Text, st.Result))
	}
	return sets
}
