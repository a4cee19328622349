package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// decodeExpiry extracts the exp claim from a JWT-shaped access token.
// The claims segment is base64url-decoded and parsed as JSON; nothing is
// verified. Treat the result as a scheduling hint, never as identity.
func decodeExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp float64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.Exp <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(claims.Exp), 0), true
}
