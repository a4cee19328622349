// Package reporter renders live invocation progress to the terminal.
package reporter

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/codexbridge/internal/bridge"
	"github.com/ppiankov/codexbridge/internal/stream"
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	cmdStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	msgStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// Printer streams one rendered line per classified event. It tracks how
// many events it has already printed, so each Progress snapshot only emits
// the new tail.
type Printer struct {
	w     io.Writer
	color bool

	mu      sync.Mutex
	printed int
}

// NewPrinter creates a printer writing to w. With color disabled all
// styling is skipped.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{w: w, color: color}
}

// Update renders any events the printer has not yet shown. Safe to call
// from the bridge progress callback.
func (p *Printer) Update(prog bridge.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ; p.printed < len(prog.Events); p.printed++ {
		ev := prog.Events[p.printed]
		fmt.Fprintln(p.w, p.styled(ev))
	}
}

func (p *Printer) styled(ev stream.Event) string {
	line := "  " + ev.Render()
	if !p.color {
		return line
	}
	switch ev.Type {
	case stream.EventTurnFailed:
		return failStyle.Render(line)
	case stream.EventItemCompleted:
		if ev.Item == nil {
			return dimStyle.Render(line)
		}
		switch ev.Item.Type {
		case stream.ItemAgentMessage:
			return msgStyle.Render(line)
		case stream.ItemCommand:
			if ev.Item.ExitCode != nil && *ev.Item.ExitCode != 0 {
				return failStyle.Render(line)
			}
			return cmdStyle.Render(line)
		default:
			return dimStyle.Render(line)
		}
	default:
		return dimStyle.Render(line)
	}
}
