package migration

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormatParseURIRoundTrip(t *testing.T) {
	p := MigrationPayload{
		OtpParameters: []OtpParameters{aliceParameters()},
		Version:       1,
		BatchSize:     1,
		BatchID:       12345,
	}
	s := FormatURI(p)
	if !strings.HasPrefix(s, "otpauth-migration://offline?data=") {
		t.Fatalf("unexpected uri %q", s)
	}
	if !IsURI(s) {
		t.Fatalf("IsURI(%q) = false", s)
	}
	got, err := ParseURI(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatParseURIEmptyPayload(t *testing.T) {
	s := FormatURI(MigrationPayload{})
	if s != "otpauth-migration://offline?data=" {
		t.Fatalf("unexpected uri %q", s)
	}
	got, err := ParseURI(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if diff := cmp.Diff(MigrationPayload{}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseURIAlphabets(t *testing.T) {
	p := MigrationPayload{OtpParameters: []OtpParameters{{
		// Bytes chosen so the standard alphabet needs '+' and '/'.
		Secret: []byte{0xfb, 0xff, 0xbf, 0xfe},
		Name:   "x",
	}}}
	raw := Encode(p)
	encodings := map[string]string{
		"std escaped":   url.QueryEscape(base64.StdEncoding.EncodeToString(raw)),
		"std unescaped": base64.StdEncoding.EncodeToString(raw),
		"raw std":       base64.RawStdEncoding.EncodeToString(raw),
		"url safe":      base64.URLEncoding.EncodeToString(raw),
		"raw url safe":  base64.RawURLEncoding.EncodeToString(raw),
	}
	for name, data := range encodings {
		t.Run(name, func(t *testing.T) {
			got, err := ParseURI("otpauth-migration://offline?data=" + data)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(p, got); diff != "" {
				t.Fatalf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseURIRejects(t *testing.T) {
	tests := map[string]string{
		"wrong scheme": "otpauth://offline?data=AA",
		"wrong host":   "otpauth-migration://online?data=AA",
		"no data":      "otpauth-migration://offline",
		"other param":  "otpauth-migration://offline?payload=AA",
		"bad base64":   "otpauth-migration://offline?data=!!!",
	}
	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseURI(s)
			if !errors.Is(err, ErrInvalidURI) {
				t.Fatalf("expected ErrInvalidURI, got %v", err)
			}
		})
	}
}

func TestParseURIPropagatesDecodeError(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte{0x0a, 0x05, 0x01})
	_, err := ParseURI("otpauth-migration://offline?data=" + url.QueryEscape(data))
	if !errors.Is(err, ErrLengthOverrun) {
		t.Fatalf("expected ErrLengthOverrun, got %v", err)
	}
}
