package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// outputPreviewLimit bounds the aggregated-output preview in rendered
// command_execution lines.
const outputPreviewLimit = 120

// Classify parses one stream line as a codex event. Malformed lines are
// expected noise from a third-party stream: they return ok=false and must
// not abort the operation.
func Classify(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	var ev Event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		slog.Debug("unparseable jsonl line", "error", err)
		return Event{}, false
	}
	if ev.Type == "" {
		slog.Debug("jsonl line without type tag")
		return Event{}, false
	}
	ev.Raw = json.RawMessage(trimmed)
	return ev, true
}

// AgentMessage returns the assistant-authored text of an item.completed
// agent_message event, or "" for every other event.
func (e Event) AgentMessage() string {
	if e.Type == EventItemCompleted && e.Item != nil && e.Item.Type == ItemAgentMessage {
		return e.Item.Text
	}
	return ""
}

// Render produces a one-line human-readable summary of the event. The
// format is stable per event kind; unrecognized kinds render with their
// raw type tag instead of failing.
func (e Event) Render() string {
	switch e.Type {
	case EventThreadStarted:
		if e.ThreadID != "" {
			return "thread started: " + e.ThreadID
		}
		return "thread started"
	case EventTurnStarted:
		return "turn started"
	case EventTurnCompleted:
		if e.Usage != nil {
			return fmt.Sprintf("turn completed (tokens: %d in, %d cached, %d out)",
				e.Usage.InputTokens, e.Usage.CachedInputTokens, e.Usage.OutputTokens)
		}
		return "turn completed"
	case EventTurnFailed:
		if e.Error != nil && e.Error.Message != "" {
			return "turn failed: " + e.Error.Message
		}
		return "turn failed"
	case EventItemStarted:
		return "started " + itemLabel(e.Item)
	case EventItemCompleted:
		return renderItem(e.Item)
	default:
		return string(e.Type)
	}
}

func renderItem(it *Item) string {
	if it == nil {
		return "item completed"
	}
	switch it.Type {
	case ItemReasoning:
		return "reasoning: " + firstLine(it.Text)
	case ItemAgentMessage:
		return "agent message: " + firstLine(it.Text)
	case ItemCommand:
		status := "ok"
		if it.ExitCode != nil && *it.ExitCode != 0 {
			status = fmt.Sprintf("exit %d", *it.ExitCode)
		}
		line := fmt.Sprintf("ran %s [%s]", it.Command, status)
		if preview := previewOutput(it.AggregatedOutput); preview != "" {
			line += ": " + preview
		}
		return line
	case ItemFileCreate:
		return "created " + filePath(it)
	case ItemFileEdit:
		return "edited " + filePath(it)
	default:
		return "completed " + itemLabel(it)
	}
}

func itemLabel(it *Item) string {
	if it == nil || it.Type == "" {
		return "item"
	}
	return string(it.Type)
}

func filePath(it *Item) string {
	if it.Path != "" {
		return it.Path
	}
	return "file"
}

// previewOutput flattens command output to one bounded line.
func previewOutput(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	return clip(strings.Join(strings.Fields(out), " "), outputPreviewLimit)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return clip(s, outputPreviewLimit)
}

// clip bounds s to limit bytes without cutting through a rune, so a
// truncated preview stays valid UTF-8.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
