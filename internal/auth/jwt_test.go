package auth

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestDecodeExpiry(t *testing.T) {
	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	token := testToken(t, exp)

	got, ok := decodeExpiry(token)
	if !ok {
		t.Fatal("expected decodable expiry")
	}
	if !got.Equal(exp) {
		t.Errorf("expected %s, got %s", exp, got)
	}
}

func TestDecodeExpiry_PaddedSegment(t *testing.T) {
	// Some encoders emit padded base64url; trailing '=' must not break.
	claims := base64.URLEncoding.EncodeToString([]byte(`{"exp":1900000000}`))
	token := "h." + claims + ".s"
	got, ok := decodeExpiry(token)
	if !ok {
		t.Fatal("expected decodable expiry from padded segment")
	}
	if got.Unix() != 1900000000 {
		t.Errorf("wrong expiry: %d", got.Unix())
	}
}

func TestDecodeExpiry_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"opaque", "sk-somethingelse"},
		{"two segments", "a.b"},
		{"four segments", "a.b.c.d"},
		{"not base64", "h.!!!not-base64!!!.s"},
		{"not json", "h." + base64.RawURLEncoding.EncodeToString([]byte("plain")) + ".s"},
		{"no exp claim", "h." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u"}`)) + ".s"},
		{"zero exp", "h." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":0}`)) + ".s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := decodeExpiry(tt.token); ok {
				t.Errorf("expected decode failure for %q", tt.token)
			}
		})
	}
}
