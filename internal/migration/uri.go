package migration

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const (
	URIScheme = "otpauth-migration"
	URIHost   = "offline"
)

// ParseURI decodes an otpauth-migration://offline?data=... URI. The data
// parameter may use the standard or URL-safe base64 alphabet, padded or not.
func ParseURI(s string) (MigrationPayload, error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return MigrationPayload{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if !strings.EqualFold(u.Scheme, URIScheme) {
		return MigrationPayload{}, fmt.Errorf("%w: scheme %q", ErrInvalidURI, u.Scheme)
	}
	if !strings.EqualFold(u.Host, URIHost) {
		return MigrationPayload{}, fmt.Errorf("%w: host %q", ErrInvalidURI, u.Host)
	}
	q := u.Query()
	if !q.Has("data") {
		return MigrationPayload{}, fmt.Errorf("%w: missing data parameter", ErrInvalidURI)
	}
	// An empty value is the all-default payload.
	data := q.Get("data")
	raw, err := decodeBase64(data)
	if err != nil {
		return MigrationPayload{}, fmt.Errorf("%w: data: %v", ErrInvalidURI, err)
	}
	p, err := Decode(raw)
	if err != nil {
		return MigrationPayload{}, fmt.Errorf("migration: decode uri payload: %w", err)
	}
	return p, nil
}

// FormatURI renders p as an otpauth-migration URI.
func FormatURI(p MigrationPayload) string {
	q := url.Values{}
	q.Set("data", base64.StdEncoding.EncodeToString(Encode(p)))
	u := url.URL{Scheme: URIScheme, Host: URIHost, RawQuery: q.Encode()}
	return u.String()
}

// IsURI reports whether s looks like a migration URI.
func IsURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), URIScheme+"://")
}

func decodeBase64(s string) ([]byte, error) {
	// Query decoding turns an unescaped '+' into a space.
	s = strings.ReplaceAll(s, " ", "+")
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "-_") {
		return base64.RawURLEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
