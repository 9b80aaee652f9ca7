package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/jacinta/internal/task"
)

// Fetcher loads the tasks shown by the dashboard.
type Fetcher func(ctx context.Context) ([]*task.Task, error)

type watchKeys struct {
	Quit    key.Binding
	Refresh key.Binding
	Filter  key.Binding
}

var defaultWatchKeys = watchKeys{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Filter:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle finished")),
}

type tasksMsg struct {
	tasks []*task.Task
	err   error
	at    time.Time
}

type tickMsg time.Time

// WatchModel is the bubbletea model of `jacinta watch`.
type WatchModel struct {
	fetch    Fetcher
	interval time.Duration
	styles   Styles
	keys     watchKeys
	spinner  spinner.Model

	tasks    []*task.Task
	err      error
	updated  time.Time
	loading  bool
	showAll  bool
	width    int
	quitting bool
}

// NewWatchModel creates a dashboard refreshing every interval.
func NewWatchModel(fetch Fetcher, interval time.Duration) WatchModel {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return WatchModel{
		fetch:    fetch,
		interval: interval,
		styles:   DefaultStyles(),
		keys:     defaultWatchKeys,
		spinner:  sp,
		loading:  true,
		showAll:  true,
	}
}

func (m WatchModel) load() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tasks, err := fetch(ctx)
		return tasksMsg{tasks: tasks, err: err, at: time.Now()}
	}
}

func (m WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init initializes the TUI model (required by Bubble Tea)
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.loading {
				return m, nil
			}
			m.loading = true
			return m, m.load()
		case key.Matches(msg, m.keys.Filter):
			m.showAll = !m.showAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tasksMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.tasks = msg.tasks
			m.updated = msg.at
		}
		return m, m.tick()

	case tickMsg:
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, m.load()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the TUI (required by Bubble Tea)
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("jacinta tasks"))
	b.WriteString("\n")

	visible := m.visible()
	if len(visible) == 0 && !m.loading {
		b.WriteString(m.styles.Muted.Render("No tasks."))
		b.WriteString("\n")
	}
	for _, t := range visible {
		done, total := t.Progress()
		style := m.styles.ForStatus(t.Status)
		fmt.Fprintf(&b, "%s %-40s %s %d/%d\n",
			style.Render(statusIcon(t.Status)),
			truncate(t.Title, 40),
			ProgressBar(done, total, 20),
			done, total)
		if t.LastError != "" && t.Status != task.StatusCompleted {
			b.WriteString("  " + m.styles.Error.Render(truncate(t.LastError, 70)) + "\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(m.styles.Error.Render("refresh failed: "+m.err.Error()) + "\n")
	case m.loading:
		b.WriteString(m.spinner.View() + " refreshing\n")
	case !m.updated.IsZero():
		b.WriteString(m.styles.Muted.Render("updated "+m.updated.Format(time.TimeOnly)) + "\n")
	}

	help := []string{}
	for _, k := range []key.Binding{m.keys.Refresh, m.keys.Filter, m.keys.Quit} {
		h := k.Help()
		help = append(help, m.styles.Key.Render(h.Key)+" "+m.styles.Muted.Render(h.Desc))
	}
	b.WriteString(strings.Join(help, "  "))
	return b.String()
}

func (m WatchModel) visible() []*task.Task {
	if m.showAll {
		return m.tasks
	}
	var out []*task.Task
	for _, t := range m.tasks {
		if !t.Status.Terminal() {
			out = append(out, t)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Watch runs the dashboard until the user quits or ctx is cancelled.
func Watch(ctx context.Context, fetch Fetcher, interval time.Duration) error {
	_, err := tea.NewProgram(NewWatchModel(fetch, interval), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
