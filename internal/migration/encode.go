package migration

import "google.golang.org/protobuf/encoding/protowire"

// Encode returns the wire form of p. Fields are written in ascending field
// number order and zero-valued scalars are omitted, so an all-default
// payload encodes to zero bytes.
func Encode(p MigrationPayload) []byte {
	return p.AppendTo(make([]byte, 0, p.Size()))
}

// EncodeOtpParameters returns the wire form of a single entry.
func EncodeOtpParameters(p OtpParameters) []byte {
	return p.AppendTo(make([]byte, 0, p.Size()))
}

// Size is the exact length of Encode(p).
func (p MigrationPayload) Size() int {
	n := 0
	for _, op := range p.OtpParameters {
		// Repeated entries are always written, even when empty.
		n += protowire.SizeTag(fieldOtpParameters) + protowire.SizeBytes(op.Size())
	}
	n += sizeVarintField(fieldVersion, int32Wire(p.Version))
	n += sizeVarintField(fieldBatchSize, int32Wire(p.BatchSize))
	n += sizeVarintField(fieldBatchIndex, int32Wire(p.BatchIndex))
	n += sizeVarintField(fieldBatchID, int32Wire(p.BatchID))
	return n
}

// AppendTo appends the wire form of p to b.
func (p MigrationPayload) AppendTo(b []byte) []byte {
	for _, op := range p.OtpParameters {
		b = protowire.AppendTag(b, fieldOtpParameters, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(op.Size()))
		b = op.AppendTo(b)
	}
	b = appendVarintField(b, fieldVersion, int32Wire(p.Version))
	b = appendVarintField(b, fieldBatchSize, int32Wire(p.BatchSize))
	b = appendVarintField(b, fieldBatchIndex, int32Wire(p.BatchIndex))
	b = appendVarintField(b, fieldBatchID, int32Wire(p.BatchID))
	return b
}

// Size is the exact length of EncodeOtpParameters(p).
func (p OtpParameters) Size() int {
	n := sizeBytesField(fieldSecret, len(p.Secret))
	n += sizeBytesField(fieldName, len(p.Name))
	n += sizeBytesField(fieldIssuer, len(p.Issuer))
	n += sizeVarintField(fieldAlgorithm, int32Wire(int32(p.Algorithm)))
	n += sizeVarintField(fieldDigits, int32Wire(p.Digits))
	n += sizeVarintField(fieldType, int32Wire(int32(p.Type)))
	n += sizeVarintField(fieldCounter, uint64(p.Counter))
	return n
}

// AppendTo appends the wire form of p to b.
func (p OtpParameters) AppendTo(b []byte) []byte {
	b = appendBytesField(b, fieldSecret, p.Secret)
	b = appendStringField(b, fieldName, p.Name)
	b = appendStringField(b, fieldIssuer, p.Issuer)
	b = appendVarintField(b, fieldAlgorithm, int32Wire(int32(p.Algorithm)))
	b = appendVarintField(b, fieldDigits, int32Wire(p.Digits))
	b = appendVarintField(b, fieldType, int32Wire(int32(p.Type)))
	b = appendVarintField(b, fieldCounter, uint64(p.Counter))
	return b
}
