package migration

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrTruncated       = errors.New("migration: truncated data")
	ErrMalformedVarint = errors.New("migration: malformed varint")
	ErrLengthOverrun   = errors.New("migration: length exceeds remaining data")
	ErrInvalidTag      = errors.New("migration: invalid field tag")
	ErrInvalidURI      = errors.New("migration: invalid migration uri")
)

// DecodeError locates a decode failure. Offset is relative to the start of
// the buffer handed to Decode, including for nested messages.
type DecodeError struct {
	Message string
	Field   protowire.Number
	Offset  int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Field == 0 {
		return fmt.Sprintf("%s at offset %d: %v", e.Message, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s field %d at offset %d: %v", e.Message, e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// BatchError reports a payload whose batch fields are inconsistent.
type BatchError struct {
	BatchSize  int32
	BatchIndex int32
	Reason     string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("migration: batch index=%d size=%d: %s", e.BatchIndex, e.BatchSize, e.Reason)
}
