package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codexbridge/internal/config"
	"github.com/ppiankov/codexbridge/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("limit") && cfg.HistoryLimit > 0 {
				limit = cfg.HistoryLimit
			}

			path := cfg.HistoryDB
			if path == "" {
				path, err = history.DefaultPath()
				if err != nil {
					return fmt.Errorf("resolve history path: %w", err)
				}
			}

			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no recorded invocations")
				return nil
			}

			for _, e := range entries {
				dur := e.FinishedAt.Sub(e.StartedAt).Truncate(time.Second)
				fmt.Printf("%4d  %s  %-9s  %6s  %3d events  %s\n",
					e.ID,
					e.StartedAt.Local().Format("2006-01-02 15:04"),
					e.Outcome,
					dur,
					e.EventCount,
					truncateTask(e.Task))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max entries to show")

	return cmd
}

func truncateTask(s string) string {
	s = firstLine(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
