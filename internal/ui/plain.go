package ui

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/resourcesearch/internal/output"
	"github.com/Aman-CERP/resourcesearch/internal/resource"
)

// Plain mode commands. Any other line is a query.
const (
	cmdQuit      = ":quit"
	cmdResources = ":resources"
	cmdStats     = ":stats"
)

// PlainSession reads one query per line and prints the settled results of
// every resource (for CI/pipes).
type PlainSession struct {
	mu      sync.Mutex
	cfg     Config
	backend Backend
	out     *output.Writer
}

// NewPlainSession creates a plain text session.
func NewPlainSession(cfg Config, backend Backend) *PlainSession {
	return &PlainSession{
		cfg:     cfg,
		backend: backend,
		out:     output.New(cfg.Output),
	}
}

// Run implements Session. It returns at end of input, on ":quit", or when
// ctx is cancelled.
func (s *PlainSession) Run(ctx context.Context) error {
	if s.cfg.Input == nil {
		<-ctx.Done()
		return nil
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		readErr <- scanLines(ctx, s.cfg.Input, lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			done, err := s.handle(ctx, line)
			if err != nil || done {
				return err
			}
		}
	}
}

func scanLines(ctx context.Context, r io.Reader, lines chan<- string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return nil
		}
	}
	return scanner.Err()
}

// handle processes one input line and reports whether the session should end.
func (s *PlainSession) handle(ctx context.Context, line string) (bool, error) {
	query := strings.TrimSpace(line)

	switch query {
	case cmdQuit:
		return true, nil
	case cmdResources:
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, name := range s.backend.ResourceNames() {
			s.out.Status("", name)
		}
		return false, nil
	case cmdStats:
		s.mu.Lock()
		defer s.mu.Unlock()
		src, ok := s.backend.(StatsSource)
		if !ok {
			s.out.Warning("search statistics are not available")
			return false, nil
		}
		return false, s.out.Stats(src.Metrics().Snapshot(), output.FormatText)
	}

	var names []string
	for _, name := range s.backend.ResourceNames() {
		if err := s.backend.Search(ctx, name, query); err != nil {
			s.mu.Lock()
			s.out.Errorf("%s: %v", name, err)
			s.mu.Unlock()
			continue
		}
		names = append(names, name)
	}

	states, err := awaitSettled(ctx, s.backend, names, query, s.cfg.PollInterval)
	if err != nil {
		return true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.out.Results(resultSets(s.cfg.Resolve, names, states), output.FormatText); err != nil {
		return true, err
	}
	s.out.Newline()
	return false, nil
}

// Notify implements Session.
func (s *PlainSession) Notify(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch n.Level {
	case LevelWarn:
		s.out.Warning(n.Message)
	case LevelError:
		s.out.Error(n.Message)
	default:
		s.out.Status("📂", n.Message)
	}
}

// awaitSettled polls until every resource in names has finished searching
// for query, or has been removed. It returns ctx.Err() if ctx ends first.
func awaitSettled(ctx context.Context, backend Backend, names []string, query string, interval time.Duration) (map[string]resource.IndexState, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		states := snapshot(backend, names)
		if settled(states, query) {
			return states, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func settled(states map[string]resource.IndexState, query string) bool {
	for _, st := range states {
		if st.IsSearching || st.Text != query {
			return false
		}
	}
	return true
}

// Ensure PlainSession implements Session
var _ Session = (*PlainSession)(nil)
