package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/codexbridge/internal/auth"
	"github.com/ppiankov/codexbridge/internal/config"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect and refresh the codex credential file",
	}
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthRefreshCmd())
	cmd.AddCommand(newAuthWatchCmd())
	return cmd
}

// authStatus is the serializable credential summary shown by auth status.
type authStatus struct {
	Authenticated bool      `json:"authenticated"`
	Valid         bool      `json:"valid"`
	HasRefresh    bool      `json:"has_refresh_token"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	ExpiryKnown   bool      `json:"expiry_known"`
	LastRefresh   time.Time `json:"last_refresh,omitempty"`
}

func statusOf(creds *auth.Credentials, now time.Time) authStatus {
	if creds == nil {
		return authStatus{}
	}
	st := authStatus{
		Authenticated: true,
		Valid:         creds.Valid(now),
		HasRefresh:    creds.RefreshToken() != "",
		LastRefresh:   creds.LastRefresh(),
	}
	st.ExpiresAt, st.ExpiryKnown = creds.ExpiresAt()
	return st
}

func printStatus(st authStatus, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	if !st.Authenticated {
		fmt.Println("not authenticated (credential file missing or unusable)")
		return nil
	}
	fmt.Println("authenticated: yes")
	if st.ExpiryKnown {
		fmt.Printf("token expires: %s", st.ExpiresAt.Local().Format(time.RFC3339))
		if remaining := time.Until(st.ExpiresAt).Truncate(time.Second); remaining > 0 {
			fmt.Printf(" (in %s)", remaining)
		} else {
			fmt.Print(" (expired)")
		}
		fmt.Println()
	} else {
		fmt.Println("token expires: unknown")
	}
	fmt.Printf("valid now:     %v\n", st.Valid)
	fmt.Printf("refresh token: %v\n", st.HasRefresh)
	if !st.LastRefresh.IsZero() {
		fmt.Printf("last refresh:  %s\n", st.LastRefresh.Local().Format(time.RFC3339))
	}
	return nil
}

func newAuthStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show credential presence, expiry, and validity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path, err := authPath(cfg)
			if err != nil {
				return err
			}
			return printStatus(statusOf(auth.Load(path), time.Now()), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit status as JSON")

	return cmd
}

func newAuthRefreshCmd() *cobra.Command {
	var (
		force   bool
		noWrite bool
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token if it is about to expire",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path, err := authPath(cfg)
			if err != nil {
				return err
			}
			r := &auth.Refresher{
				Path:     path,
				TokenURL: cfg.TokenURL,
				ClientID: cfg.ClientID,
				Leeway:   cfg.RefreshLeeway,
				NoWrite:  noWrite,
			}

			ctx := cmd.Context()
			if force {
				creds := auth.Load(path)
				if creds == nil {
					return fmt.Errorf("not authenticated: no usable credentials at %s", path)
				}
				if err := r.Refresh(ctx, creds); err != nil {
					return err
				}
				fmt.Println("token refreshed")
				return nil
			}

			creds, err := r.Ensure(ctx)
			if err != nil {
				return err
			}
			if creds == nil {
				return fmt.Errorf("not authenticated: no usable credentials at %s", path)
			}
			return printStatus(statusOf(creds, time.Now()), false)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "refresh even if the token is not expiring")
	cmd.Flags().BoolVar(&noWrite, "no-write", false, "do not persist the refreshed document")

	return cmd
}

func newAuthWatchCmd() *cobra.Command {
	var pollMode bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the credential file and report status changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path, err := authPath(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return auth.Watch(ctx, auth.WatchConfig{
				Path:     path,
				PollMode: pollMode,
				OnChange: func(creds *auth.Credentials) {
					st := statusOf(creds, time.Now())
					fmt.Printf("[%s] ", time.Now().Format("15:04:05"))
					if !st.Authenticated {
						fmt.Println("not authenticated")
						return
					}
					if st.ExpiryKnown {
						fmt.Printf("authenticated, valid=%v, expires %s\n",
							st.Valid, st.ExpiresAt.Local().Format(time.RFC3339))
					} else {
						fmt.Printf("authenticated, valid=%v, expiry unknown\n", st.Valid)
					}
				},
			})
		},
	}

	cmd.Flags().BoolVar(&pollMode, "poll", false, "use polling instead of fsnotify")

	return cmd
}

func authPath(cfg *config.Settings) (string, error) {
	if cfg != nil && cfg.AuthPath != "" {
		return cfg.AuthPath, nil
	}
	path, err := auth.DefaultPath()
	if err != nil {
		return "", fmt.Errorf("resolve credential path: %w", err)
	}
	return path, nil
}
