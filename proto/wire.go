// Package proto encodes the protobuf messages exchanged during the
// connection handshake: the HandshakeMessage envelope that carries each
// Noise flight, and the ClientPayload a client sends in its final flight.
//
// Messages are encoded field by field with protowire. Optional scalars are
// pointers so that an explicit zero is distinguishable from an absent field;
// byte fields are absent when nil.
package proto

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidMessage is returned when a buffer is not a well-formed message.
var ErrInvalidMessage = errors.New("invalid protobuf message")

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int32 returns a pointer to v.
func Int32(v int32) *int32 { return &v }

// Uint32 returns a pointer to v.
func Uint32(v uint32) *uint32 { return &v }

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v *string) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, *v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendUint64(b []byte, num protowire.Number, v *uint64) []byte {
	if v == nil {
		return b
	}
	return appendVarint(b, num, *v)
}

func appendUint32(b []byte, num protowire.Number, v *uint32) []byte {
	if v == nil {
		return b
	}
	return appendVarint(b, num, uint64(*v))
}

// int32 values are sign-extended, so negatives take ten bytes.
func appendInt32(b []byte, num protowire.Number, v *int32) []byte {
	if v == nil {
		return b
	}
	return appendVarint(b, num, uint64(int64(*v)))
}

func appendBool(b []byte, num protowire.Number, v *bool) []byte {
	if v == nil {
		return b
	}
	return appendVarint(b, num, protowire.EncodeBool(*v))
}

// appendMessage writes an embedded message. A nil message is absent, an empty
// one is written as a zero-length field.
func appendMessage(b []byte, num protowire.Number, present bool, body []byte) []byte {
	if !present {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

// field is one decoded key/value pair.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

// parseFields splits b into its fields. Fixed-width and group fields are
// skipped; they never appear in these messages.
func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrInvalidMessage, num, protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType || typ == protowire.BytesType {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func (f field) wrongType() error {
	return fmt.Errorf("%w: field %d has wire type %d", ErrInvalidMessage, f.num, f.typ)
}

func (f field) bytesValue() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, f.wrongType()
	}
	return append([]byte{}, f.bytes...), nil
}

func (f field) stringValue() (*string, error) {
	if f.typ != protowire.BytesType {
		return nil, f.wrongType()
	}
	return String(string(f.bytes)), nil
}

func (f field) uint64Value() (*uint64, error) {
	if f.typ != protowire.VarintType {
		return nil, f.wrongType()
	}
	return Uint64(f.varint), nil
}

func (f field) uint32Value() (*uint32, error) {
	if f.typ != protowire.VarintType {
		return nil, f.wrongType()
	}
	return Uint32(uint32(f.varint)), nil
}

func (f field) int32Value() (*int32, error) {
	if f.typ != protowire.VarintType {
		return nil, f.wrongType()
	}
	return Int32(int32(f.varint)), nil
}

func (f field) boolValue() (*bool, error) {
	if f.typ != protowire.VarintType {
		return nil, f.wrongType()
	}
	return Bool(protowire.DecodeBool(f.varint)), nil
}
