package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/resourcesearch/internal/output"
	"github.com/Aman-CERP/resourcesearch/internal/resource"
)

// maxNotices is how many recent notices the status bar keeps.
const maxNotices = 3

// TUISession provides an incremental search UI using bubbletea.
// Every edit of the query searches all resources; results are redrawn as
// the store settles.
type TUISession struct {
	cfg     Config
	backend Backend
	notices chan Notice
}

// NewTUISession creates a TUI session.
// Returns an error if the output is not a TTY.
func NewTUISession(cfg Config, backend Backend) (*TUISession, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	return &TUISession{
		cfg:     cfg,
		backend: backend,
		notices: make(chan Notice, 32),
	}, nil
}

// Run implements Session.
func (s *TUISession) Run(ctx context.Context) error {
	model := newSearchModel(ctx, s.cfg, s.backend, s.notices)

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if f, ok := s.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	if s.cfg.Input != nil {
		opts = append(opts, tea.WithInput(s.cfg.Input))
	}

	_, err := tea.NewProgram(model, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Notify implements Session. Notices are dropped when the UI falls behind.
func (s *TUISession) Notify(n Notice) {
	select {
	case s.notices <- n:
	default:
	}
}

// Message types for bubbletea
type tickMsg time.Time
type noticeMsg Notice
type searchIssuedMsg struct {
	query string
	errs  []string
}

// searchModel is the bubbletea model for incremental search.
type searchModel struct {
	ctx      context.Context
	cfg      Config
	backend  Backend
	notices  <-chan Notice
	input    textinput.Model
	spinner  spinner.Model
	styles   Styles
	names    []string
	states   map[string]resource.IndexState
	query    string
	errs     []string
	recent   []Notice
	width    int
	height   int
	quitting bool
}

func newSearchModel(ctx context.Context, cfg Config, backend Backend, notices <-chan Notice) *searchModel {
	ti := textinput.New()
	ti.Placeholder = "type to search"
	ti.Prompt = "› "
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	names := backend.ResourceNames()
	return &searchModel{
		ctx:     ctx,
		cfg:     cfg,
		backend: backend,
		notices: notices,
		input:   ti,
		spinner: s,
		styles:  GetStyles(cfg.NoColor || DetectNoColor()),
		names:   names,
		states:  snapshot(backend, names),
		width:   80,
		height:  24,
	}
}

// Init implements tea.Model. The empty query is issued first so every
// resource starts out listing all of its documents.
func (m *searchModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		tickCmd(m.cfg.PollInterval),
		m.searchCmd(""),
		waitForNotice(m.notices),
	)
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForNotice(ch <-chan Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return noticeMsg(<-ch)
	}
}

// searchCmd searches every resource for query off the UI goroutine.
func (m *searchModel) searchCmd(query string) tea.Cmd {
	backend, ctx, names := m.backend, m.ctx, m.names
	return func() tea.Msg {
		msg := searchIssuedMsg{query: query}
		for _, name := range names {
			if err := backend.Search(ctx, name, query); err != nil {
				msg.errs = append(msg.errs, fmt.Sprintf("%s: %v", name, err))
			}
		}
		return msg
	}
}

// Update implements tea.Model.
func (m *searchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if v := m.input.Value(); v != m.query {
			m.query = v
			return m, tea.Batch(cmd, m.searchCmd(v))
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 8
		return m, nil

	case searchIssuedMsg:
		if msg.query == m.query {
			m.errs = msg.errs
		}
		return m, nil

	case noticeMsg:
		m.recent = append(m.recent, Notice(msg))
		if len(m.recent) > maxNotices {
			m.recent = m.recent[len(m.recent)-maxNotices:]
		}
		m.states = snapshot(m.backend, m.names)
		return m, waitForNotice(m.notices)

	case tickMsg:
		m.states = snapshot(m.backend, m.names)
		return m, tickCmd(m.cfg.PollInterval)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *searchModel) View() string {
	if m.quitting {
		return ""
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	sections := []string{m.input.View(), m.renderDivider(contentWidth)}
	for _, e := range m.errs {
		sections = append(sections, m.styles.Error.Render("✗ "+e))
	}

	perResource := m.hitsPerResource()
	for _, name := range m.names {
		sections = append(sections, m.renderResource(name, perResource, contentWidth))
	}

	title := "resourcesearch"
	if m.cfg.Title != "" {
		title = fmt.Sprintf("resourcesearch • %s", m.cfg.Title)
	}

	return m.wrapInPanel(title, strings.Join(sections, "\n"), contentWidth) + "\n" + m.renderStatusBar()
}

// hitsPerResource splits the terminal height between resources.
func (m *searchModel) hitsPerResource() int {
	if len(m.names) == 0 {
		return 0
	}
	// Header, input, divider, border and status lines plus one title line per resource.
	avail := m.height - 8 - len(m.names)
	n := avail / len(m.names)
	if n < 1 {
		n = 1
	}
	return n
}

func (m *searchModel) renderResource(name string, limit, width int) string {
	st, ok := m.states[name]
	if !ok {
		return m.styles.Dim.Render(name + " (removed)")
	}

	var header string
	switch {
	case st.IsSearching:
		header = fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Active.Render(name))
	case st.Err != nil:
		header = m.styles.Error.Render("✗ " + name)
	default:
		header = m.styles.Success.Render("● ") + m.styles.Header.Render(name)
	}
	header += m.styles.Label.Render(fmt.Sprintf("  %d %s", len(st.Result), plural(len(st.Result), "match", "matches")))

	lines := []string{header}
	if st.Err != nil {
		lines = append(lines, m.styles.Error.Render(truncate(st.Err.Error(), width-2)))
		return strings.Join(lines, "\n")
	}

	set := m.cfg.Resolve(name, st.Text, st.Result)
	for i, hit := range set.Hits {
		if i == limit {
			lines = append(lines, m.styles.Dim.Render(fmt.Sprintf("  … %d more", len(set.Hits)-limit)))
			break
		}
		rest := truncate(hitFields(hit), width-2-lipgloss.Width(hit.ID))
		lines = append(lines, "  "+m.styles.Match.Render(hit.ID)+m.styles.Label.Render(rest))
	}
	return strings.Join(lines, "\n")
}

func hitFields(hit output.Hit) string {
	if len(hit.Fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range sortedKeys(hit.Fields) {
		fmt.Fprintf(&b, "  %s", hit.Fields[k])
	}
	return b.String()
}

// renderDivider renders a horizontal divider line.
func (m *searchModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

// wrapInPanel wraps content in a box border with title.
func (m *searchModel) wrapInPanel(title, content string, width int) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		m.styles.Panel.Width(width).Render(content),
	)
}

// renderStatusBar renders the most recent notices and the key hint.
func (m *searchModel) renderStatusBar() string {
	var parts []string
	for _, n := range m.recent {
		switch n.Level {
		case LevelWarn:
			parts = append(parts, m.styles.Warning.Render("⚠ "+n.Message))
		case LevelError:
			parts = append(parts, m.styles.Error.Render("✗ "+n.Message))
		default:
			parts = append(parts, m.styles.Label.Render(n.Message))
		}
	}
	if src, ok := m.backend.(StatsSource); ok {
		snap := src.Metrics().Snapshot()
		parts = append(parts, m.styles.Dim.Render(fmt.Sprintf("%d %s", snap.TotalSearches,
			plural(int(snap.TotalSearches), "search", "searches"))))
	}
	parts = append(parts, m.styles.Dim.Render("esc to quit"))

	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// truncate cuts unstyled s to at most maxLen visible cells.
func truncate(s string, maxLen int) string {
	if s == "" || lipgloss.Width(s) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return "…"
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > maxLen {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// Ensure TUISession implements Session
var _ Session = (*TUISession)(nil)
