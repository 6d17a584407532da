package migration

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// reader walks one message window. base is the offset of buf[0] within the
// outermost buffer so nested errors report absolute positions.
type reader struct {
	msg  string
	buf  []byte
	pos  int
	base int
}

func (r *reader) done() bool {
	return r.pos >= len(r.buf)
}

func (r *reader) fail(field protowire.Number, at int, err error) error {
	return &DecodeError{Message: r.msg, Field: field, Offset: r.base + at, Err: err}
}

func (r *reader) tag() (protowire.Number, protowire.Type, error) {
	start := r.pos
	v, n := protowire.ConsumeVarint(r.buf[r.pos:])
	if n < 0 {
		return 0, 0, r.fail(0, start, varintError(n))
	}
	num, typ := protowire.DecodeTag(v)
	if !num.IsValid() {
		return 0, 0, r.fail(0, start, ErrInvalidTag)
	}
	r.pos += n
	return num, typ, nil
}

func (r *reader) varint(field protowire.Number) (uint64, error) {
	v, n := protowire.ConsumeVarint(r.buf[r.pos:])
	if n < 0 {
		return 0, r.fail(field, r.pos, varintError(n))
	}
	r.pos += n
	return v, nil
}

// bytes returns a length-delimited value as a sub-slice of the window.
func (r *reader) bytes(field protowire.Number) ([]byte, error) {
	start := r.pos
	l, err := r.varint(field)
	if err != nil {
		return nil, err
	}
	if l > uint64(len(r.buf)-r.pos) {
		return nil, r.fail(field, start, ErrLengthOverrun)
	}
	v := r.buf[r.pos : r.pos+int(l)]
	r.pos += int(l)
	return v, nil
}

// skip consumes the value of a field this package does not read.
// tagAt is where the field's tag started.
func (r *reader) skip(num protowire.Number, typ protowire.Type, tagAt int) error {
	switch typ {
	case protowire.VarintType:
		_, err := r.varint(num)
		return err
	case protowire.Fixed32Type:
		_, n := protowire.ConsumeFixed32(r.buf[r.pos:])
		if n < 0 {
			return r.fail(num, r.pos, ErrTruncated)
		}
		r.pos += n
	case protowire.Fixed64Type:
		_, n := protowire.ConsumeFixed64(r.buf[r.pos:])
		if n < 0 {
			return r.fail(num, r.pos, ErrTruncated)
		}
		r.pos += n
	case protowire.BytesType:
		_, err := r.bytes(num)
		return err
	case protowire.StartGroupType:
		_, n := protowire.ConsumeGroup(num, r.buf[r.pos:])
		if n < 0 {
			return r.fail(num, r.pos, groupError(n))
		}
		r.pos += n
	default:
		return r.fail(num, tagAt, ErrInvalidTag)
	}
	return nil
}

func varintError(n int) error {
	if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return ErrMalformedVarint
}

func groupError(n int) error {
	err := protowire.ParseError(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return fmt.Errorf("%w: %v", ErrInvalidTag, err)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func sizeVarintField(num protowire.Number, v uint64) int {
	if v == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeVarint(v)
}

func sizeBytesField(num protowire.Number, n int) int {
	if n == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(n)
}

// int32 and enum values are sign-extended to 64 bits on the wire.
func int32Wire(v int32) uint64 {
	return uint64(int64(v))
}
