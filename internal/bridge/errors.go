package bridge

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
)

// Spawn failures are terminal errors, distinct from a failed Result: there
// is no process output to synthesize, only an actionable message.
var (
	ErrCodexNotFound      = errors.New("codex CLI not found in PATH (install it with: npm install -g @openai/codex)")
	ErrCodexNotExecutable = errors.New("codex CLI is not executable (check file permissions)")
	ErrEmptyTask          = errors.New("task text must not be empty")
)

// translateSpawnError maps an operating-system spawn failure onto a
// domain error the host can act on.
func translateSpawnError(err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return ErrCodexNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrCodexNotExecutable
	default:
		return fmt.Errorf("start codex: %w", err)
	}
}
