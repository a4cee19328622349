package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTokenURL is the OAuth token endpoint the codex CLI
	// authenticates against.
	DefaultTokenURL = "https://auth.openai.com/oauth/token"

	// DefaultClientID is the public OAuth client id of the codex CLI.
	DefaultClientID = "app_EMoamEEZ73f0CkXaXp7hrann"

	refreshScope = "openid profile email"

	httpTimeout = 10 * time.Second
)

// ErrRefreshFailed marks a failed token exchange. Callers must surface it;
// continuing with a stale token only defers the authentication failure to
// a more confusing place.
var ErrRefreshFailed = errors.New("token refresh failed")

// Refresher reads the credential file and refreshes the access token when
// it is about to expire. Zero-value fields fall back to package defaults.
type Refresher struct {
	Path     string        // credential file, default DefaultPath()
	TokenURL string        // default DefaultTokenURL
	ClientID string        // default DefaultClientID
	Leeway   time.Duration // default DefaultLeeway
	NoWrite  bool          // skip writeback after a successful refresh
	Client   *http.Client  // default client with httpTimeout
	Now      func() time.Time
}

// Ensure returns current credentials, refreshing them first if needed.
// A missing or unreadable credential file returns (nil, nil): the caller
// is simply not authenticated. A failed exchange is a hard error.
func (r *Refresher) Ensure(ctx context.Context) (*Credentials, error) {
	path, err := r.path()
	if err != nil {
		return nil, nil
	}
	creds := Load(path)
	if creds == nil {
		return nil, nil
	}

	now := r.now()
	leeway := r.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	if !creds.NeedsRefresh(now, leeway) {
		return creds, nil
	}
	if creds.RefreshToken() == "" {
		slog.Debug("token expiring but no refresh token available")
		return creds, nil
	}
	if err := r.Refresh(ctx, creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// Refresh performs the token exchange unconditionally and merges the
// response into creds, persisting the document unless NoWrite is set.
// Fields the response omits keep their previous values.
func (r *Refresher) Refresh(ctx context.Context, creds *Credentials) error {
	refreshToken := creds.RefreshToken()
	if refreshToken == "" {
		return fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
	}

	resp, err := r.exchange(ctx, refreshToken)
	if err != nil {
		return err
	}

	creds.setTokenField("access_token", resp.AccessToken)
	if resp.RefreshToken != "" {
		creds.setTokenField("refresh_token", resp.RefreshToken)
	}
	if resp.IDToken != "" {
		creds.setTokenField("id_token", resp.IDToken)
	}
	creds.stampLastRefresh(r.now())

	if r.NoWrite {
		return nil
	}
	path, err := r.path()
	if err != nil {
		return fmt.Errorf("resolve credential path: %w", err)
	}
	data, err := creds.Encode()
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	slog.Debug("credentials refreshed", "path", path)
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// exchange POSTs the refresh grant to the token endpoint.
func (r *Refresher) exchange(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	endpoint := r.TokenURL
	if endpoint == "" {
		endpoint = DefaultTokenURL
	}
	clientID := r.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("scope", refreshScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRefreshFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned %s", ErrRefreshFailed, resp.Status)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrRefreshFailed, err)
	}
	if strings.TrimSpace(tr.AccessToken) == "" {
		return nil, fmt.Errorf("%w: response missing access_token", ErrRefreshFailed)
	}
	return &tr, nil
}

func (r *Refresher) path() (string, error) {
	if r.Path != "" {
		return r.Path, nil
	}
	return DefaultPath()
}

func (r *Refresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
