// Package otpauth converts migration entries to and from otpauth:// keys and
// generates their current codes.
package otpauth

import (
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pquerna/otp"

	"otpmigrate/internal/migration"
)

var (
	ErrUnsupportedType = errors.New("otpauth: unsupported otp type")
	ErrEmptySecret     = errors.New("otpauth: empty secret")
	ErrInvalidSecret   = errors.New("otpauth: invalid base32 secret")
)

// DefaultPeriod is the TOTP step used by the authenticator.
const DefaultPeriod = 30

// The authenticator numbers algorithms beyond SHA1 and stores digit counts
// as a small enum. Both are carried through the payload as raw integers.
const (
	algorithmSHA256 migration.Algorithm = 2
	algorithmSHA512 migration.Algorithm = 3
	algorithmMD5    migration.Algorithm = 4

	digitCountSix   = 1
	digitCountEight = 2
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Algorithm maps a payload algorithm to the otp library's value.
// ALGO_INVALID falls back to SHA1, as the authenticator does.
func Algorithm(a migration.Algorithm) (otp.Algorithm, error) {
	if a.Known() {
		return otp.AlgorithmSHA1, nil
	}
	switch a {
	case algorithmSHA256:
		return otp.AlgorithmSHA256, nil
	case algorithmSHA512:
		return otp.AlgorithmSHA512, nil
	case algorithmMD5:
		return otp.AlgorithmMD5, nil
	default:
		return 0, fmt.Errorf("otpauth: unsupported algorithm %s", a)
	}
}

// Digits maps a payload digit value to a code length. Both the enum form
// (0/1 six, 2 eight) and a literal length are accepted.
func Digits(d int32) (otp.Digits, error) {
	switch {
	case d == 0 || d == digitCountSix:
		return otp.DigitsSix, nil
	case d == digitCountEight:
		return otp.DigitsEight, nil
	case d >= 3 && d <= 10:
		return otp.Digits(d), nil
	default:
		return 0, fmt.Errorf("otpauth: unsupported digit count %d", d)
	}
}

// Secret returns the unpadded base32 form of the entry's secret.
func Secret(p migration.OtpParameters) string {
	return secretEncoding.EncodeToString(p.Secret)
}

// Label is the display name "issuer:name", or just the name.
func Label(p migration.OtpParameters) string {
	if p.Issuer == "" || strings.HasPrefix(p.Name, p.Issuer+":") {
		return p.Name
	}
	return p.Issuer + ":" + p.Name
}

// keyLabel is the URL path label. The issuer prefix is always added when
// there is an issuer, so nameFromPath can strip exactly that prefix.
func keyLabel(p migration.OtpParameters) string {
	if p.Issuer == "" {
		return p.Name
	}
	return p.Issuer + ":" + p.Name
}

// nameFromPath undoes keyLabel. Colons elsewhere in the label belong to
// the name.
func nameFromPath(path, issuer string) string {
	label := strings.TrimPrefix(path, "/")
	if issuer != "" && strings.HasPrefix(label, issuer+":") {
		return label[len(issuer)+1:]
	}
	return label
}

// KeyFromParameters builds the otpauth:// key for an entry.
func KeyFromParameters(p migration.OtpParameters) (*otp.Key, error) {
	if len(p.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	alg, err := Algorithm(p.Algorithm)
	if err != nil {
		return nil, err
	}
	digits, err := Digits(p.Digits)
	if err != nil {
		return nil, err
	}

	v := url.Values{}
	v.Set("secret", Secret(p))
	if p.Issuer != "" {
		v.Set("issuer", p.Issuer)
	}
	v.Set("algorithm", alg.String())
	v.Set("digits", strconv.Itoa(digits.Length()))

	var host string
	switch p.Type {
	case migration.OtpTypeTOTP:
		host = "totp"
		v.Set("period", strconv.Itoa(DefaultPeriod))
	case migration.OtpTypeHOTP:
		host = "hotp"
		v.Set("counter", strconv.FormatInt(p.Counter, 10))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, p.Type)
	}

	u := url.URL{
		Scheme:   "otpauth",
		Host:     host,
		Path:     "/" + keyLabel(p),
		RawQuery: strings.ReplaceAll(v.Encode(), "+", "%20"),
	}
	return otp.NewKeyFromURL(u.String())
}

// URL is KeyFromParameters(p).URL().
func URL(p migration.OtpParameters) (string, error) {
	key, err := KeyFromParameters(p)
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// ParametersFromURL parses an otpauth:// URL into an entry.
func ParametersFromURL(s string) (migration.OtpParameters, error) {
	key, err := otp.NewKeyFromURL(strings.TrimSpace(s))
	if err != nil {
		return migration.OtpParameters{}, fmt.Errorf("otpauth: parse url: %w", err)
	}
	return ParametersFromKey(key)
}

// ParametersFromKey is the inverse of KeyFromParameters. Digit counts are
// written in the authenticator's enum form where one exists.
func ParametersFromKey(key *otp.Key) (migration.OtpParameters, error) {
	u, err := url.Parse(key.URL())
	if err != nil {
		return migration.OtpParameters{}, fmt.Errorf("otpauth: parse url: %w", err)
	}
	q := u.Query()

	var p migration.OtpParameters
	switch strings.ToLower(key.Type()) {
	case "totp":
		p.Type = migration.OtpTypeTOTP
	case "hotp":
		p.Type = migration.OtpTypeHOTP
		counter, err := counterOf(q)
		if err != nil {
			return migration.OtpParameters{}, err
		}
		p.Counter = counter
	default:
		return migration.OtpParameters{}, fmt.Errorf("%w: %q", ErrUnsupportedType, key.Type())
	}

	secret, err := DecodeSecret(key.Secret())
	if err != nil {
		return migration.OtpParameters{}, err
	}
	p.Secret = secret
	// Either part may contain colons; key.Issuer and key.AccountName
	// split at the first one.
	p.Issuer = q.Get("issuer")
	p.Name = nameFromPath(u.Path, p.Issuer)

	switch key.Algorithm() {
	case otp.AlgorithmSHA256:
		p.Algorithm = algorithmSHA256
	case otp.AlgorithmSHA512:
		p.Algorithm = algorithmSHA512
	case otp.AlgorithmMD5:
		p.Algorithm = algorithmMD5
	default:
		p.Algorithm = migration.AlgorithmSHA1
	}

	switch key.Digits() {
	case otp.DigitsSix:
		p.Digits = digitCountSix
	case otp.DigitsEight:
		p.Digits = digitCountEight
	default:
		p.Digits = int32(key.Digits())
	}
	return p, nil
}

// DecodeSecret accepts base32 with or without padding, any case, and
// ignores spaces.
func DecodeSecret(s string) ([]byte, error) {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	s = strings.TrimRight(s, "=")
	if s == "" {
		return nil, ErrEmptySecret
	}
	b, err := secretEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return b, nil
}

func counterOf(q url.Values) (int64, error) {
	raw := q.Get("counter")
	if raw == "" {
		return 0, nil
	}
	c, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("otpauth: invalid counter %q: %w", raw, err)
	}
	return c, nil
}
