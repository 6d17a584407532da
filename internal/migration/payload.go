// Package migration encodes and decodes the authenticator migration
// payload carried by otpauth-migration:// URIs.
//
// The wire format is the protobuf encoding of the MigrationPayload schema.
// Field numbers and types are fixed at compile time in this package; no
// descriptor or registry is involved.
package migration

import "fmt"

// Algorithm is the HMAC algorithm of an OTP entry.
// Values outside the named constants are kept as-is.
type Algorithm int32

const (
	AlgorithmInvalid Algorithm = 0
	AlgorithmSHA1    Algorithm = 1
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmInvalid:
		return "ALGO_INVALID"
	case AlgorithmSHA1:
		return "ALGO_SHA1"
	default:
		return fmt.Sprintf("Algorithm(%d)", int32(a))
	}
}

// Known reports whether a is one of the named algorithm values.
func (a Algorithm) Known() bool {
	return a == AlgorithmInvalid || a == AlgorithmSHA1
}

// OtpType selects counter-based or time-based codes.
// Values outside the named constants are kept as-is.
type OtpType int32

const (
	OtpTypeInvalid OtpType = 0
	OtpTypeHOTP    OtpType = 1
	OtpTypeTOTP    OtpType = 2
)

func (t OtpType) String() string {
	switch t {
	case OtpTypeInvalid:
		return "OTP_INVALID"
	case OtpTypeHOTP:
		return "OTP_HOTP"
	case OtpTypeTOTP:
		return "OTP_TOTP"
	default:
		return fmt.Sprintf("OtpType(%d)", int32(t))
	}
}

// Known reports whether t is one of the named type values.
func (t OtpType) Known() bool {
	return t == OtpTypeInvalid || t == OtpTypeHOTP || t == OtpTypeTOTP
}

// OtpParameters is one account inside a migration payload.
type OtpParameters struct {
	Secret    []byte
	Name      string
	Issuer    string
	Algorithm Algorithm
	Digits    int32
	Type      OtpType
	// Counter only means something for HOTP entries.
	Counter int64
}

// MigrationPayload is the top-level message. A large export is split into
// several payloads sharing a BatchID.
type MigrationPayload struct {
	OtpParameters []OtpParameters
	Version       int32
	BatchSize     int32
	BatchIndex    int32
	BatchID       int32
}

// Field numbers of MigrationPayload.
const (
	fieldOtpParameters = 1
	fieldVersion       = 2
	fieldBatchSize     = 3
	fieldBatchIndex    = 4
	fieldBatchID       = 5
)

// Field numbers of OtpParameters.
const (
	fieldSecret    = 1
	fieldName      = 2
	fieldIssuer    = 3
	fieldAlgorithm = 4
	fieldDigits    = 5
	fieldType      = 6
	fieldCounter   = 7
)
