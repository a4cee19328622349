package stream

import "encoding/json"

// Codex JSONL event types.
// codex exec --json emits newline-delimited JSON events to stdout.

// EventType identifies the kind of JSONL event from codex.
type EventType string

const (
	EventThreadStarted EventType = "thread.started"
	EventTurnStarted   EventType = "turn.started"
	EventTurnCompleted EventType = "turn.completed"
	EventTurnFailed    EventType = "turn.failed"
	EventItemStarted   EventType = "item.started"
	EventItemCompleted EventType = "item.completed"
)

// ItemType identifies the kind of item carried by item.* events.
type ItemType string

const (
	ItemReasoning    ItemType = "reasoning"
	ItemCommand      ItemType = "command_execution"
	ItemAgentMessage ItemType = "agent_message"
	ItemFileCreate   ItemType = "file_create"
	ItemFileEdit     ItemType = "file_edit"
)

// Event is the top-level JSONL structure emitted by codex.
// Unknown types are kept, not rejected: Type holds the raw tag and Raw the
// original line, so the vocabulary can grow without breaking consumers.
type Event struct {
	Type     EventType       `json:"type"`
	ThreadID string          `json:"thread_id,omitempty"`
	Item     *Item           `json:"item,omitempty"`
	Usage    *Usage          `json:"usage,omitempty"`
	Error    *EventError     `json:"error,omitempty"`
	Raw      json.RawMessage `json:"-"`
}

// Item is the payload of item.started / item.completed events.
type Item struct {
	ID      string   `json:"id,omitempty"`
	Type    ItemType `json:"type"`
	Text    string   `json:"text,omitempty"`
	Command string   `json:"command,omitempty"`
	// AggregatedOutput holds combined stdout+stderr of a command_execution.
	AggregatedOutput string `json:"aggregated_output,omitempty"`
	ExitCode         *int   `json:"exit_code,omitempty"`
	Status           string `json:"status,omitempty"`
	Path             string `json:"path,omitempty"`
}

// Usage carries token counters from turn.completed.
type Usage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

// EventError is the payload of turn.failed.
type EventError struct {
	Message string `json:"message"`
}
