// Package auth reads and refreshes the codex CLI credential file
// (~/.codex/auth.json). The access token's expiry claim is parsed, never
// cryptographically verified; it gates refresh timing only.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultLeeway is the margin before expiry within which a token is
// proactively refreshed.
const DefaultLeeway = 120 * time.Second

// DefaultPath returns the well-known per-user credential file path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codex", "auth.json"), nil
}

// Credentials is the on-disk credential document. Top-level and tokens-block
// keys this package does not recognize are retained as raw JSON and written
// back unchanged.
type Credentials struct {
	top    map[string]json.RawMessage
	tokens map[string]json.RawMessage
}

// Load reads the credential document at path. Any I/O or parse failure, and
// a document without an access token, yields nil: an unreadable or absent
// file means "not authenticated", not a hard error.
func Load(path string) *Credentials {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return Parse(data)
}

// Parse decodes a credential document. Returns nil unless a non-empty
// access token is present.
func Parse(data []byte) *Credentials {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil
	}
	raw, ok := top["tokens"]
	if !ok {
		return nil
	}
	var tokens map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil
	}
	c := &Credentials{top: top, tokens: tokens}
	if c.AccessToken() == "" {
		return nil
	}
	return c
}

// AccessToken returns the bearer token. Never empty for a Credentials
// obtained through Load or Parse.
func (c *Credentials) AccessToken() string { return c.tokenField("access_token") }

// RefreshToken returns the refresh token, "" if absent.
func (c *Credentials) RefreshToken() string { return c.tokenField("refresh_token") }

// IDToken returns the ID token, "" if absent.
func (c *Credentials) IDToken() string { return c.tokenField("id_token") }

func (c *Credentials) tokenField(key string) string {
	raw, ok := c.tokens[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (c *Credentials) setTokenField(key, value string) {
	b, _ := json.Marshal(value)
	c.tokens[key] = b
}

// LastRefresh returns the recorded last-refresh timestamp, zero if absent
// or unparseable.
func (c *Credentials) LastRefresh() time.Time {
	raw, ok := c.top["last_refresh"]
	if !ok {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (c *Credentials) stampLastRefresh(now time.Time) {
	b, _ := json.Marshal(now.UTC().Format(time.RFC3339))
	c.top["last_refresh"] = b
}

// ExpiresAt decodes the expiry claim of the access token. ok is false when
// the token is not a three-segment JWT or carries no usable exp claim.
func (c *Credentials) ExpiresAt() (time.Time, bool) {
	return decodeExpiry(c.AccessToken())
}

// Valid is the strict read-only check: a token with unknown expiry counts
// as already invalid. Contrast NeedsRefresh, which treats unknown expiry
// as "do not refresh"; the two policies are deliberately distinct.
func (c *Credentials) Valid(now time.Time) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return now.Before(exp)
}

// NeedsRefresh reports whether the token expires within leeway. Unknown
// expiry never triggers a refresh.
func (c *Credentials) NeedsRefresh(now time.Time, leeway time.Duration) bool {
	exp, ok := c.ExpiresAt()
	if !ok {
		return false
	}
	return !exp.Add(-leeway).After(now)
}

// Encode serializes the document, unknown fields included.
func (c *Credentials) Encode() ([]byte, error) {
	tokens, err := json.Marshal(c.tokens)
	if err != nil {
		return nil, err
	}
	c.top["tokens"] = tokens
	return json.MarshalIndent(c.top, "", "  ")
}
