package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_RequiresCallback(t *testing.T) {
	if err := Watch(context.Background(), WatchConfig{Path: "/tmp/x"}); err == nil {
		t.Fatal("expected error without OnChange")
	}
}

func TestWatch_ReportsInitialState(t *testing.T) {
	now := time.Now()
	path := writeCredFile(t, credDoc(t, testToken(t, now.Add(time.Hour))))

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *Credentials, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, WatchConfig{
			Path:     path,
			PollMode: true,
			OnChange: func(c *Credentials) {
				select {
				case got <- c:
				default:
				}
			},
		})
	}()

	select {
	case creds := <-got:
		if creds == nil || creds.AccessToken() == "" {
			t.Error("expected initial credentials")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial report")
	}

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("watch returned error on cancel: %v", err)
	}
}

func TestWatch_InitialStateMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan *Credentials, 1)
	go func() {
		_ = Watch(ctx, WatchConfig{
			Path:     path,
			PollMode: true,
			OnChange: func(c *Credentials) {
				select {
				case got <- c:
				default:
				}
			},
		})
	}()
	defer cancel()

	select {
	case creds := <-got:
		if creds != nil {
			t.Error("missing file must report nil credentials")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial report")
	}
}
