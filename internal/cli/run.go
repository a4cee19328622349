package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ppiankov/codexbridge/internal/bridge"
	"github.com/ppiankov/codexbridge/internal/config"
	"github.com/ppiankov/codexbridge/internal/history"
	"github.com/ppiankov/codexbridge/internal/reporter"
)

// AbortedError signals that the invocation was cancelled. main maps it to
// exit code 130.
type AbortedError struct {
	Message string // partial agent message captured before the abort
}

func (e *AbortedError) Error() string { return "aborted" }

func newRunCmd() *cobra.Command {
	var (
		model     string
		sandbox   string
		dir       string
		codexBin  string
		killGrace time.Duration
		tuiMode   string
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Run one codex invocation and stream its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("model") && cfg.Model != "" {
				model = cfg.Model
			}
			if !cmd.Flags().Changed("sandbox") && cfg.Sandbox != "" {
				sandbox = cfg.Sandbox
			}
			if !cmd.Flags().Changed("dir") && cfg.WorkDir != "" {
				dir = cfg.WorkDir
			}
			if !cmd.Flags().Changed("codex-bin") && cfg.CodexBin != "" {
				codexBin = cfg.CodexBin
			}
			if !cmd.Flags().Changed("kill-grace") && cfg.KillGrace > 0 {
				killGrace = cfg.KillGrace
			}
			if !cmd.Flags().Changed("no-history") && cfg.NoHistory {
				noHistory = true
			}
			return runTask(args[0], model, sandbox, dir, codexBin, killGrace, tuiMode, noHistory, cfg)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "model override passed to codex")
	cmd.Flags().StringVar(&sandbox, "sandbox", "restricted", "execution permission level: restricted or unrestricted")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the codex process")
	cmd.Flags().StringVar(&codexBin, "codex-bin", "codex", "codex binary name or path")
	cmd.Flags().DurationVar(&killGrace, "kill-grace", 2*time.Second, "SIGTERM to SIGKILL grace period on cancellation")
	cmd.Flags().StringVar(&tuiMode, "tui", "auto", "display mode: full (interactive TUI), minimal (event lines), off (final message only), auto (detect TTY)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this invocation in the history database")

	return cmd
}

func runTask(task, model, sandbox, dir, codexBin string, killGrace time.Duration, tuiMode string, noHistory bool, cfg *config.Settings) error {
	sb, err := parseSandbox(sandbox)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	isTTY := isTerminal()
	if tuiMode == "auto" {
		if isTTY {
			tuiMode = "minimal"
		} else {
			tuiMode = "off"
		}
	}

	ctrl := &bridge.Controller{
		CodexBin:  codexBin,
		KillGrace: killGrace,
	}

	var tuiProgram *tea.Program
	switch tuiMode {
	case "full":
		var mu sync.Mutex
		var snap reporter.Snapshot
		ctrl.OnProgress = func(p bridge.Progress) {
			mu.Lock()
			snap = reporter.Snapshot{Events: p.Events, LastMessage: p.LastMessage, Done: !p.Streaming}
			mu.Unlock()
		}
		tuiModel := reporter.NewTUIModel(task, func() reporter.Snapshot {
			mu.Lock()
			defer mu.Unlock()
			return snap
		}, cancel)
		tuiProgram = tea.NewProgram(tuiModel, tea.WithAltScreen())
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				slog.Warn("TUI error", "error", err)
			}
		}()
	case "minimal":
		printer := reporter.NewPrinter(os.Stderr, isTTY)
		ctrl.OnProgress = printer.Update
	default:
		// "off" or unrecognized — no live display
	}

	started := time.Now()
	res, runErr := ctrl.Run(ctx, bridge.Request{
		Task:    task,
		Model:   model,
		Sandbox: sb,
		Dir:     dir,
	})

	// release the alt screen before any final output
	if tuiProgram != nil {
		tuiProgram.Quit()
		tuiProgram.Wait()
	}
	if runErr != nil {
		return runErr
	}

	if !noHistory {
		recordHistory(cfg, history.Entry{
			StartedAt:   started,
			FinishedAt:  time.Now(),
			Task:        task,
			Model:       model,
			Sandbox:     string(sb),
			Outcome:     string(res.Outcome),
			ExitCode:    res.ExitCode,
			LastMessage: res.Message,
			EventCount:  len(res.Events),
		})
	}

	return reportResult(res)
}

func reportResult(res *bridge.Result) error {
	switch res.Outcome {
	case bridge.OutcomeSucceeded:
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		if res.Usage != nil {
			slog.Debug("token usage", "input", res.Usage.InputTokens,
				"cached", res.Usage.CachedInputTokens, "output", res.Usage.OutputTokens)
		}
		return nil
	case bridge.OutcomeAborted:
		if res.Message != "" {
			fmt.Fprintln(os.Stderr, "partial message before abort:")
			fmt.Fprintln(os.Stderr, res.Message)
		}
		return &AbortedError{Message: res.Message}
	default:
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = "no stderr output"
		}
		return fmt.Errorf("codex failed (exit %d): %s", res.ExitCode, firstLine(detail))
	}
}

// recordHistory is best-effort: a broken history database must not turn a
// finished invocation into an error.
func recordHistory(cfg *config.Settings, e history.Entry) {
	path := ""
	if cfg != nil {
		path = cfg.HistoryDB
	}
	if path == "" {
		p, err := history.DefaultPath()
		if err != nil {
			slog.Warn("resolve history path", "error", err)
			return
		}
		path = p
	}
	store, err := history.Open(path)
	if err != nil {
		slog.Warn("open history", "error", err)
		return
	}
	defer func() { _ = store.Close() }()
	if _, err := store.Record(e); err != nil {
		slog.Warn("record history", "error", err)
	}
}

func parseSandbox(s string) (bridge.Sandbox, error) {
	switch s {
	case "", "restricted":
		return bridge.SandboxRestricted, nil
	case "unrestricted":
		return bridge.SandboxUnrestricted, nil
	default:
		return "", fmt.Errorf("invalid sandbox %q (want restricted or unrestricted)", s)
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
