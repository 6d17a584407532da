package migration

import "google.golang.org/protobuf/encoding/protowire"

// Decode parses a MigrationPayload. Unknown fields are skipped. A known
// field number carrying an unexpected wire type is treated as unknown.
// The returned value shares no memory with b.
func Decode(b []byte) (MigrationPayload, error) {
	var p MigrationPayload
	r := reader{msg: "MigrationPayload", buf: b}
	for !r.done() {
		tagAt := r.pos
		num, typ, err := r.tag()
		if err != nil {
			return MigrationPayload{}, err
		}
		if typ != wireTypeOf(payloadWireTypes, num) {
			if err := r.skip(num, typ, tagAt); err != nil {
				return MigrationPayload{}, err
			}
			continue
		}
		if num == fieldOtpParameters {
			v, err := r.bytes(num)
			if err != nil {
				return MigrationPayload{}, err
			}
			op, err := decodeOtpParameters(v, r.base+r.pos-len(v))
			if err != nil {
				return MigrationPayload{}, err
			}
			p.OtpParameters = append(p.OtpParameters, op)
			continue
		}
		v, err := r.varint(num)
		if err != nil {
			return MigrationPayload{}, err
		}
		switch num {
		case fieldVersion:
			p.Version = int32(v)
		case fieldBatchSize:
			p.BatchSize = int32(v)
		case fieldBatchIndex:
			p.BatchIndex = int32(v)
		case fieldBatchID:
			p.BatchID = int32(v)
		}
	}
	return p, nil
}

// DecodeOtpParameters parses a single entry.
func DecodeOtpParameters(b []byte) (OtpParameters, error) {
	return decodeOtpParameters(b, 0)
}

func decodeOtpParameters(b []byte, base int) (OtpParameters, error) {
	var p OtpParameters
	r := reader{msg: "OtpParameters", buf: b, base: base}
	for !r.done() {
		tagAt := r.pos
		num, typ, err := r.tag()
		if err != nil {
			return OtpParameters{}, err
		}
		if typ != wireTypeOf(otpParameterWireTypes, num) {
			if err := r.skip(num, typ, tagAt); err != nil {
				return OtpParameters{}, err
			}
			continue
		}
		if typ == protowire.BytesType {
			v, err := r.bytes(num)
			if err != nil {
				return OtpParameters{}, err
			}
			switch num {
			case fieldSecret:
				p.Secret = append([]byte(nil), v...)
			case fieldName:
				p.Name = string(v)
			case fieldIssuer:
				p.Issuer = string(v)
			}
			continue
		}
		v, err := r.varint(num)
		if err != nil {
			return OtpParameters{}, err
		}
		switch num {
		case fieldAlgorithm:
			p.Algorithm = Algorithm(int32(v))
		case fieldDigits:
			p.Digits = int32(v)
		case fieldType:
			p.Type = OtpType(int32(v))
		case fieldCounter:
			p.Counter = int64(v)
		}
	}
	return p, nil
}

// noWireType never matches a real wire type, so unlisted fields are skipped.
const noWireType protowire.Type = -1

var payloadWireTypes = []protowire.Type{
	fieldOtpParameters: protowire.BytesType,
	fieldVersion:       protowire.VarintType,
	fieldBatchSize:     protowire.VarintType,
	fieldBatchIndex:    protowire.VarintType,
	fieldBatchID:       protowire.VarintType,
}

var otpParameterWireTypes = []protowire.Type{
	fieldSecret:    protowire.BytesType,
	fieldName:      protowire.BytesType,
	fieldIssuer:    protowire.BytesType,
	fieldAlgorithm: protowire.VarintType,
	fieldDigits:    protowire.VarintType,
	fieldType:      protowire.VarintType,
	fieldCounter:   protowire.VarintType,
}

func wireTypeOf(table []protowire.Type, num protowire.Number) protowire.Type {
	if num < 1 || int(num) >= len(table) {
		return noWireType
	}
	return table[num]
}
