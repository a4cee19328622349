// Package bridge spawns the codex CLI and turns its JSONL event stream
// into a typed, cancellable, single-shot operation.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/codexbridge/internal/stream"
)

// defaultKillGrace is how long a cancelled process gets between SIGTERM
// and SIGKILL.
const defaultKillGrace = 2 * time.Second

// readChunkSize is the stdout read buffer. Lines routinely straddle chunk
// boundaries; reassembly is the LineBuffer's job.
const readChunkSize = 32 * 1024

// Sandbox selects the execution-permission level passed to codex.
type Sandbox string

const (
	SandboxRestricted   Sandbox = "restricted"
	SandboxUnrestricted Sandbox = "unrestricted"
)

// Request describes one codex invocation. Immutable once Run starts.
type Request struct {
	Task    string  // required
	Model   string  // optional model override
	Sandbox Sandbox // optional, defaults to restricted
	Dir     string  // optional working directory
}

// Controller runs codex invocations. The zero value is usable.
type Controller struct {
	CodexBin   string         // binary name or path, default "codex"
	KillGrace  time.Duration  // default defaultKillGrace
	OnProgress func(Progress) // optional, called per classified event
}

// Operation lifecycle. The settlement transition is guarded by the phase
// itself: only the first running→settled transition wins, every later
// trigger is ignored.
type phase int

const (
	phaseIdle phase = iota
	phaseSpawning
	phaseRunning
	phaseSettled
)

// opState is the accumulated state of one invocation.
type opState struct {
	mu          sync.Mutex
	phase       phase
	events      []stream.Event
	lastMessage string
	usage       *stream.Usage
}

func (s *opState) transition(from, to phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != from {
		return false
	}
	s.phase = to
	return true
}

// settle moves to phaseSettled from any live phase. Returns false if the
// operation already settled.
func (s *opState) settle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phaseSettled {
		return false
	}
	s.phase = phaseSettled
	return true
}

func (s *opState) append(ev stream.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if ev.Type == stream.EventItemCompleted && ev.Item != nil && ev.Item.Type == stream.ItemAgentMessage {
		s.lastMessage = ev.Item.Text
	}
	if ev.Type == stream.EventTurnCompleted && ev.Usage != nil {
		s.usage = ev.Usage
	}
}

// snapshotEvents copies the event sequence so a delivered snapshot never
// observes later mutation.
func (s *opState) snapshotEvents() []stream.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stream.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *opState) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMessage
}

func (s *opState) usageSnapshot() *stream.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Run executes one codex invocation and blocks until it settles. A failed
// process is a failed Result, not an error; errors are reserved for spawn
// failures and invalid requests.
func (c *Controller) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, ErrEmptyTask
	}

	st := &opState{}

	// Cancelled before start: settle immediately, spawn nothing.
	if ctx.Err() != nil {
		st.settle()
		return c.finish(st, true, -1, ""), nil
	}

	st.transition(phaseIdle, phaseSpawning)

	bin := c.CodexBin
	if bin == "" {
		bin = "codex"
	}
	args := buildArgs(req)
	slog.Debug("spawning codex", "bin", bin, "args", args, "dir", req.Dir)

	cmd := exec.Command(bin, args...)
	cmd.Dir = req.Dir
	setupProcessGroup(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// stdin stays unconnected: codex exec is non-interactive.

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		st.settle()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		st.settle()
		return nil, translateSpawnError(err)
	}
	st.transition(phaseSpawning, phaseRunning)

	var cancelled atomic.Bool
	// settled closes on settlement and deregisters the watcher; abandoned
	// closes when buffered output is given up on after kill escalation.
	settled := make(chan struct{})
	abandoned := make(chan struct{})

	// Exactly one cancellation watcher per operation. Settlement on any
	// path closes settled, which stops the watcher before it can fire a
	// late escalation.
	go func() {
		select {
		case <-settled:
			return
		case <-ctx.Done():
		}
		cancelled.Store(true)
		grace := c.KillGrace
		if grace <= 0 {
			grace = defaultKillGrace
		}
		slog.Debug("cancellation requested, sending SIGTERM")
		_ = terminate(cmd)
		select {
		case <-settled:
			return
		case <-time.After(grace):
			slog.Debug("grace period elapsed, sending SIGKILL")
			_ = kill(cmd)
		}
		select {
		case <-settled:
		case <-time.After(grace):
			close(abandoned)
		}
	}()

	waitCh := make(chan error, 1)
	go func() {
		c.consume(stdout, st)
		waitCh <- cmd.Wait()
	}()

	var exitErr error
	select {
	case exitErr = <-waitCh:
	case <-abandoned:
		// The process ignored SIGKILL long enough; stop waiting for its
		// buffered output.
		exitErr = context.Canceled
	}

	st.settle()
	close(settled)

	return c.finish(st, cancelled.Load(), exitCode(exitErr), stderr.String()), nil
}

// consume drains stdout through the line buffer, classifying each complete
// line and surfacing progress in arrival order.
func (c *Controller) consume(r io.Reader, st *opState) {
	var lb stream.LineBuffer
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range lb.Feed(buf[:n]) {
				c.ingest(st, line)
			}
		}
		if err != nil {
			if line, ok := lb.Flush(); ok {
				c.ingest(st, line)
			}
			return
		}
	}
}

func (c *Controller) ingest(st *opState, line string) {
	ev, ok := stream.Classify(line)
	if !ok {
		return
	}
	st.append(ev)
	if c.OnProgress != nil {
		c.OnProgress(Progress{
			Events:      st.snapshotEvents(),
			LastMessage: st.last(),
			Streaming:   true,
		})
	}
}

// finish synthesizes the Result and delivers the terminal progress
// callback with Streaming=false.
func (c *Controller) finish(st *opState, cancelled bool, exitCode int, stderr string) *Result {
	res := synthesize(st, cancelled, exitCode, stderr)
	if c.OnProgress != nil {
		c.OnProgress(Progress{
			Events:      res.Events,
			LastMessage: res.Message,
			Streaming:   false,
		})
	}
	return res
}

// buildArgs maps a Request onto the codex exec command line.
func buildArgs(req Request) []string {
	args := []string{"exec", "--json"}
	switch req.Sandbox {
	case SandboxUnrestricted:
		args = append(args, "--sandbox", "danger-full-access")
	default:
		args = append(args, "--sandbox", "read-only")
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	args = append(args, req.Task)
	return args
}

// exitCode extracts the process exit code: 0 on clean exit, the reported
// code for non-zero exits, -1 when the process was signalled or never
// produced a status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
