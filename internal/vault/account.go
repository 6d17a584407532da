package vault

import (
	"otpmigrate/internal/migration"
	"otpmigrate/internal/otpauth"
)

// Account is one stored OTP account. Secret is unpadded base32.
type Account struct {
	Name      string `json:"name"`
	Issuer    string `json:"issuer,omitempty"`
	Secret    string `json:"secret"`
	Algorithm int32  `json:"algorithm"`
	Digits    int32  `json:"digits"`
	Type      int32  `json:"type"`
	Counter   int64  `json:"counter,omitempty"`
}

// AccountFromParameters converts a migration entry.
func AccountFromParameters(p migration.OtpParameters) Account {
	return Account{
		Name:      p.Name,
		Issuer:    p.Issuer,
		Secret:    otpauth.Secret(p),
		Algorithm: int32(p.Algorithm),
		Digits:    p.Digits,
		Type:      int32(p.Type),
		Counter:   p.Counter,
	}
}

// Parameters converts the account back to a migration entry.
func (a Account) Parameters() (migration.OtpParameters, error) {
	secret, err := otpauth.DecodeSecret(a.Secret)
	if err != nil {
		return migration.OtpParameters{}, err
	}
	return migration.OtpParameters{
		Secret:    secret,
		Name:      a.Name,
		Issuer:    a.Issuer,
		Algorithm: migration.Algorithm(a.Algorithm),
		Digits:    a.Digits,
		Type:      migration.OtpType(a.Type),
		Counter:   a.Counter,
	}, nil
}

func (a Account) Label() string {
	return otpauth.Label(migration.OtpParameters{Name: a.Name, Issuer: a.Issuer})
}
