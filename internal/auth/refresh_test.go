package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func credDoc(t *testing.T, accessToken string) string {
	t.Helper()
	return fmt.Sprintf(`{
  "OPENAI_API_KEY": "sk-legacy",
  "tokens": {
    "access_token": %q,
    "refresh_token": "rt-original",
    "id_token": "idt-original",
    "account_id": "acc_7"
  }
}`, accessToken)
}

func tokenServer(t *testing.T, hits *int, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("expected grant_type refresh_token, got %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "rt-original" {
			t.Errorf("expected original refresh token, got %q", got)
		}
		if r.Form.Get("client_id") == "" {
			t.Error("expected client_id")
		}
		if r.Form.Get("scope") == "" {
			t.Error("expected scope")
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEnsure_RefreshAndWriteback(t *testing.T) {
	now := time.Now()
	path := writeCredFile(t, credDoc(t, testToken(t, now.Add(10*time.Second))))

	var hits int
	srv := tokenServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-new",
			"refresh_token": "rt-new",
			"id_token":      "idt-new",
			"expires_in":    3600,
			"token_type":    "Bearer",
		})
	})

	r := &Refresher{Path: path, TokenURL: srv.URL, Now: func() time.Time { return now }}
	creds, err := r.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected 1 exchange, got %d", hits)
	}
	if creds.AccessToken() != "at-new" || creds.RefreshToken() != "rt-new" || creds.IDToken() != "idt-new" {
		t.Errorf("tokens not merged: %q %q %q", creds.AccessToken(), creds.RefreshToken(), creds.IDToken())
	}

	// writeback happened and preserved unknown fields
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var round map[string]any
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("persisted document not valid JSON: %v", err)
	}
	if round["OPENAI_API_KEY"] != "sk-legacy" {
		t.Error("unknown top-level key lost on writeback")
	}
	tokens := round["tokens"].(map[string]any)
	if tokens["account_id"] != "acc_7" {
		t.Error("unknown tokens-block key lost on writeback")
	}
	if tokens["access_token"] != "at-new" {
		t.Errorf("persisted access token wrong: %v", tokens["access_token"])
	}
	if _, ok := round["last_refresh"].(string); !ok {
		t.Error("expected last_refresh stamp")
	}

	// restrictive permissions on the rewritten file
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestEnsure_ResponseOmitsOptionalTokens(t *testing.T) {
	now := time.Now()
	path := writeCredFile(t, credDoc(t, testToken(t, now.Add(10*time.Second))))

	var hits int
	srv := tokenServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-new"})
	})

	r := &Refresher{Path: path, TokenURL: srv.URL, Now: func() time.Time { return now }}
	creds, err := r.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.RefreshToken() != "rt-original" || creds.IDToken() != "idt-original" {
		t.Errorf("omitted fields must keep prior values: %q %q", creds.RefreshToken(), creds.IDToken())
	}
}

func TestEnsure_NoRefreshNeeded(t *testing.T) {
	now := time.Now()
	path := writeCredFile(t, credDoc(t, testToken(t, now.Add(1000*time.Second))))
	before, _ := os.ReadFile(path)

	var hits int
	srv := tokenServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {})

	r := &Refresher{Path: path, TokenURL: srv.URL, Now: func() time.Time { return now }}
	creds, err := r.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 0 {
		t.Errorf("expected no exchange, got %d", hits)
	}
	if creds.AccessToken() == "" {
		t.Error("expected existing credentials back")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("file must be untouched when no refresh is needed")
	}
}

func TestEnsure_NoRefreshToken(t *testing.T) {
	now := time.Now()
	doc := fmt.Sprintf(`{"tokens":{"access_token":%q}}`, testToken(t, now.Add(10*time.Second)))
	path := writeCredFile(t, doc)

	var hits int
	srv := tokenServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {})

	r := &Refresher{Path: path, TokenURL: srv.URL, Now: func() time.Time { return now }}
	creds, err := r.Ensure(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 0 {
		t.Errorf("no refresh token: expected no exchange, got %d", hits)
	}
	if creds == nil {
		t.Fatal("expected stale credentials back, not nil")
	}
}

func TestEnsure_MissingFile(t *testing.T) {
	r := &Refresher{Path: filepath.Join(t.TempDir(), "absent.json")}
	creds, err := r.Ensure(context.Background())
	if err != nil {
		t.Fatalf("missing file must not be an error, got %v", err)
	}
	if creds != nil {
		t.Fatal("expected nil credentials for missing file")
	}
}

func TestEnsure_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http 400", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}},
		{"non-object body", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `["not","an","object"]`)
		}},
		{"missing access_token", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"token_type":"Bearer"}`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			path := writeCredFile(t, credDoc(t, testToken(t, now.Add(10*time.Second))))
			before, _ := os.ReadFile(path)

			var hits int
			srv := tokenServer(t, &hits, tt.handler)

			r := &Refresher{Path: path, TokenURL: srv.URL, Now: func() time.Time { return now }}
			if _, err := r.Ensure(context.Background()); !errors.Is(err, ErrRefreshFailed) {
				t.Fatalf("expected ErrRefreshFailed, got %v", err)
			}

			after, _ := os.ReadFile(path)
			if string(before) != string(after) {
				t.Error("failed refresh must leave the document byte-for-byte unchanged")
			}
		})
	}
}

func TestRefresh_NoWrite(t *testing.T) {
	now := time.Now()
	path := writeCredFile(t, credDoc(t, testToken(t, now.Add(10*time.Second))))
	before, _ := os.ReadFile(path)

	var hits int
	srv := tokenServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-new"})
	})

	r := &Refresher{Path: path, TokenURL: srv.URL, NoWrite: true, Now: func() time.Time { return now }}
	creds := Load(path)
	if err := r.Refresh(context.Background(), creds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.AccessToken() != "at-new" {
		t.Error("in-memory document must still be updated")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("NoWrite must skip persistence")
	}
}

func TestWriteFileAtomic_CreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "auth.json")
	if err := writeFileAtomic(path, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		t.Errorf("expected 0700 dir permissions, got %o", perm)
	}

	// no temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}
