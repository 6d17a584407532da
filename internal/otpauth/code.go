package otpauth

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"

	"otpmigrate/internal/migration"
)

// Code returns the current code for p. TOTP entries use the time at; HOTP
// entries use their stored counter and ignore at.
func Code(p migration.OtpParameters, at time.Time) (string, error) {
	if len(p.Secret) == 0 {
		return "", ErrEmptySecret
	}
	alg, err := Algorithm(p.Algorithm)
	if err != nil {
		return "", err
	}
	digits, err := Digits(p.Digits)
	if err != nil {
		return "", err
	}
	secret := Secret(p)

	switch p.Type {
	case migration.OtpTypeTOTP:
		code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
			Period:    DefaultPeriod,
			Digits:    digits,
			Algorithm: alg,
		})
		if err != nil {
			return "", fmt.Errorf("otpauth: totp: %w", err)
		}
		return code, nil
	case migration.OtpTypeHOTP:
		if p.Counter < 0 {
			return "", fmt.Errorf("otpauth: negative hotp counter %d", p.Counter)
		}
		code, err := hotp.GenerateCodeCustom(secret, uint64(p.Counter), hotp.ValidateOpts{
			Digits:    digits,
			Algorithm: alg,
		})
		if err != nil {
			return "", fmt.Errorf("otpauth: hotp: %w", err)
		}
		return code, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, p.Type)
	}
}

// Remaining is how long the TOTP code valid at t stays valid.
func Remaining(t time.Time) time.Duration {
	period := int64(DefaultPeriod)
	elapsed := t.Unix() % period
	return time.Duration(period-elapsed) * time.Second
}
