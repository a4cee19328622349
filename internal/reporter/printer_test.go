package reporter

import (
	"strings"
	"testing"

	"github.com/ppiankov/codexbridge/internal/bridge"
	"github.com/ppiankov/codexbridge/internal/stream"
)

func TestPrinter_EmitsOnlyNewTail(t *testing.T) {
	var buf strings.Builder
	p := NewPrinter(&buf, false)

	events := []stream.Event{
		{Type: stream.EventThreadStarted, ThreadID: "th_1"},
		{Type: stream.EventTurnStarted},
	}
	p.Update(bridge.Progress{Events: events, Streaming: true})

	events = append(events, stream.Event{
		Type: stream.EventItemCompleted,
		Item: &stream.Item{Type: stream.ItemAgentMessage, Text: "hello"},
	})
	p.Update(bridge.Progress{Events: events, Streaming: true})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	if lines[0] != "  thread started: th_1" {
		t.Errorf("line 0: %q", lines[0])
	}
	if lines[2] != "  agent message: hello" {
		t.Errorf("line 2: %q", lines[2])
	}
}

func TestPrinter_RepeatedSnapshotPrintsNothing(t *testing.T) {
	var buf strings.Builder
	p := NewPrinter(&buf, false)

	prog := bridge.Progress{Events: []stream.Event{{Type: stream.EventTurnStarted}}}
	p.Update(prog)
	before := buf.Len()
	p.Update(prog)
	if buf.Len() != before {
		t.Errorf("same snapshot must not print again: %q", buf.String())
	}
}

func TestPrinter_NoColorHasNoEscapes(t *testing.T) {
	var buf strings.Builder
	p := NewPrinter(&buf, false)

	exit := 2
	p.Update(bridge.Progress{Events: []stream.Event{
		{Type: stream.EventTurnFailed, Error: &stream.EventError{Message: "boom"}},
		{Type: stream.EventItemCompleted, Item: &stream.Item{
			Type: stream.ItemCommand, Command: "go test ./...", ExitCode: &exit,
		}},
	}})

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no ANSI escapes: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "turn failed: boom") {
		t.Errorf("missing failure line: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "ran go test ./... [exit 2]") {
		t.Errorf("missing command line: %q", buf.String())
	}
}
