package reporter

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/codexbridge/internal/stream"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Snapshot is the state the TUI polls each tick.
type Snapshot struct {
	Events      []stream.Event
	LastMessage string
	Done        bool
}

type tickMsg time.Time

// TUIModel is the Bubbletea model for the live invocation display.
type TUIModel struct {
	task        string
	getSnapshot func() Snapshot
	cancelRun   func() // called on 'q' to cancel the invocation context

	snap         Snapshot
	started      time.Time
	scrollOffset int
	follow       bool
	frame        int
	width        int
	height       int
}

// NewTUIModel creates a new TUI model polling getSnapshot.
func NewTUIModel(task string, getSnapshot func() Snapshot, cancelRun func()) TUIModel {
	return TUIModel{
		task:        task,
		getSnapshot: getSnapshot,
		cancelRun:   cancelRun,
		started:     time.Now(),
		follow:      true,
	}
}

// Init implements tea.Model.
func (m TUIModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelRun != nil {
				m.cancelRun()
			}
			return m, nil

		case "j", "down":
			m.follow = false
			m.scrollDown(1)

		case "k", "up":
			m.follow = false
			m.scrollUp(1)

		case "g", "home":
			m.follow = false
			m.scrollOffset = 0

		case "G", "end":
			m.follow = true

		case "pgdown":
			m.follow = false
			m.scrollDown(m.visibleLines())

		case "pgup":
			m.follow = false
			m.scrollUp(m.visibleLines())
		}

	case tickMsg:
		m.snap = m.getSnapshot()
		m.frame++
		if m.snap.Done {
			return m, tea.Quit
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m *TUIModel) scrollDown(n int) {
	m.scrollOffset += n
	if max := m.maxScroll(); m.scrollOffset > max {
		m.scrollOffset = max
	}
}

func (m *TUIModel) scrollUp(n int) {
	m.scrollOffset -= n
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m TUIModel) visibleLines() int {
	// header(2) + blank(1) + help(1) = 4 reserved lines
	avail := m.height - 4
	if avail < 3 {
		return 3
	}
	return avail
}

func (m TUIModel) maxScroll() int {
	total := len(m.snap.Events)
	vis := m.visibleLines()
	if total <= vis {
		return 0
	}
	return total - vis
}

// View implements tea.Model.
func (m TUIModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	spinner := spinnerChars[m.frame%len(spinnerChars)]
	elapsed := time.Since(m.started).Truncate(time.Second)
	header := fmt.Sprintf("%s codexbridge — %s", spinner, truncate(m.task, m.width-20))
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d events  %s elapsed", len(m.snap.Events), elapsed)))
	b.WriteString("\n\n")

	lines := make([]string, 0, len(m.snap.Events))
	for _, ev := range m.snap.Events {
		lines = append(lines, "  "+ev.Render())
	}

	vis := m.visibleLines()
	start := m.scrollOffset
	if m.follow {
		start = len(lines) - vis
		if start < 0 {
			start = 0
		}
	}
	end := start + vis
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}

	for i := start; i < end; i++ {
		b.WriteString(truncate(lines[i], m.width))
		b.WriteString("\n")
	}

	// pad to fill screen
	for i := end - start; i < vis; i++ {
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("  ↑↓/jk: scroll  g/G: top/follow  q: cancel"))

	return b.String()
}

// truncate bounds a display line to limit bytes, backing up to a rune
// boundary so the cut never produces invalid UTF-8.
func truncate(s string, limit int) string {
	if limit <= 3 || len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
