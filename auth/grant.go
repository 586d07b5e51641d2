// ABOUTME: Token grant normalization for login, register and refresh responses
// ABOUTME: Accepts camel or snake field names and relative or absolute expiry

package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/woragis/woragis-posts-frontend/credentials"
)

// MinAccessTTL guards against clock skew turning an absolute expiry into a
// negative or near-zero lifetime.
const MinAccessTTL = 60 * time.Second

// epochMillisThreshold separates unix seconds from unix milliseconds.
const epochMillisThreshold = 1e12

// grant is a normalized token response.
type grant struct {
	AccessToken  string
	RefreshToken string
	TTL          time.Duration
	ExpiresIn    int
	User         User
}

type rawGrant struct {
	AccessToken       string          `json:"accessToken"`
	AccessTokenSnake  string          `json:"access_token"`
	RefreshToken      string          `json:"refreshToken"`
	RefreshTokenSnake string          `json:"refresh_token"`
	ExpiresIn         json.RawMessage `json:"expiresIn"`
	ExpiresInSnake    json.RawMessage `json:"expires_in"`
	ExpiresAt         json.RawMessage `json:"expiresAt"`
	ExpiresAtSnake    json.RawMessage `json:"expires_at"`
	User              User            `json:"user"`
}

// parseGrant decodes the data member of a token response.
func parseGrant(data []byte, now time.Time) (grant, error) {
	var raw rawGrant
	if firstPresent(data) == nil {
		return grant{TTL: credentials.DefaultAccessTTL}, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return grant{}, fmt.Errorf("invalid token response: %w", err)
	}

	g := grant{
		AccessToken:  firstNonEmpty(raw.AccessToken, raw.AccessTokenSnake),
		RefreshToken: firstNonEmpty(raw.RefreshToken, raw.RefreshTokenSnake),
		User:         raw.User,
	}

	ttl, err := normalizeTTL(
		firstPresent(raw.ExpiresIn, raw.ExpiresInSnake),
		firstPresent(raw.ExpiresAt, raw.ExpiresAtSnake),
		now,
	)
	if err != nil {
		return grant{}, err
	}
	g.TTL = ttl
	g.ExpiresIn = int(ttl / time.Second)
	return g, nil
}

// normalizeTTL converts a relative lifetime in seconds or an absolute
// expiry (unix seconds, unix milliseconds or RFC 3339) into a lifetime
// floored at MinAccessTTL. With neither present the default access
// lifetime applies.
func normalizeTTL(expiresIn, expiresAt json.RawMessage, now time.Time) (time.Duration, error) {
	var ttl time.Duration
	switch {
	case expiresIn != nil:
		secs, err := parseNumber(expiresIn)
		if err != nil {
			return 0, fmt.Errorf("invalid expires_in: %w", err)
		}
		ttl = time.Duration(secs * float64(time.Second))
	case expiresAt != nil:
		at, err := parseInstant(expiresAt)
		if err != nil {
			return 0, fmt.Errorf("invalid expires_at: %w", err)
		}
		ttl = at.Sub(now)
	default:
		return credentials.DefaultAccessTTL, nil
	}

	if ttl < MinAccessTTL {
		ttl = MinAccessTTL
	}
	return ttl.Truncate(time.Second), nil
}

// parseInstant accepts a JSON number or numeric string (unix seconds or
// milliseconds) or an RFC 3339 string.
func parseInstant(raw json.RawMessage) (time.Time, error) {
	if v, err := parseNumber(raw); err == nil {
		if v > epochMillisThreshold {
			return time.UnixMilli(int64(v)), nil
		}
		return time.Unix(int64(v), 0), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, s)
}

func parseNumber(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// firstPresent returns the first non-null raw value.
func firstPresent(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
