// Package binary implements the compact binary XML format used for every
// message exchanged over an established session.
//
// A Node is written as a list whose first element is the tag, followed by
// key/value attribute pairs and an optional content element. Strings are
// compressed through the token dictionary, JID forms, and nibble or hex
// packing before falling back to length-prefixed raw bytes.
package binary

import (
	"fmt"
	"math"
	"sort"

	"github.com/opd-ai/wacore/binary/token"
	"github.com/opd-ai/wacore/types"
)

const (
	// MaxListSize is the largest list a List16 header can describe.
	MaxListSize = math.MaxUint16
	// MaxBinarySize is the largest raw byte string a Binary32 prefix can describe.
	MaxBinarySize = math.MaxUint32
	// MaxDepth bounds node nesting for both encoding and decoding.
	MaxDepth = 256
)

// Codec encodes and decodes nodes with a particular token dictionary. The zero
// value is not usable; use NewCodec. A Codec has no mutable state and may be
// shared between goroutines.
type Codec struct {
	dict *token.Dictionary
}

// NewCodec returns a codec bound to dict. A nil dict selects token.Default().
func NewCodec(dict *token.Dictionary) *Codec {
	if dict == nil {
		dict = token.Default()
	}
	return &Codec{dict: dict}
}

var defaultCodec = NewCodec(nil)

// Encode serializes n with the default dictionary.
func Encode(n Node) ([]byte, error) {
	return defaultCodec.Encode(n)
}

// Decode parses data with the default dictionary.
func Decode(data []byte) (*Node, error) {
	return defaultCodec.Decode(data)
}

// Encode serializes n. The output is deterministic: attributes are written in
// sorted key order.
func (c *Codec) Encode(n Node) ([]byte, error) {
	e := &encoder{dict: c.dict, buf: make([]byte, 0, 128)}
	if err := e.writeNode(n, 0); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type encoder struct {
	dict *token.Dictionary
	buf  []byte
}

func (e *encoder) writeNode(n Node, depth int) error {
	if depth >= MaxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrSizeLimitExceeded, MaxDepth)
	}

	size := 1 + 2*len(n.Attrs)
	if n.Content.Kind != ContentNone {
		size++
	}
	if err := e.writeListStart(size); err != nil {
		return fmt.Errorf("node %q: %w", n.Tag, err)
	}
	if err := e.writeString(n.Tag, true); err != nil {
		return err
	}

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := e.writeString(k, true); err != nil {
			return err
		}
		if err := e.writeString(n.Attrs[k], true); err != nil {
			return err
		}
	}

	return e.writeContent(n, depth)
}

func (e *encoder) writeContent(n Node, depth int) error {
	switch n.Content.Kind {
	case ContentNone:
		return nil
	case ContentNode:
		if n.Content.Node == nil {
			return fmt.Errorf("%w: node %q has ContentNode without a child", ErrInvalidNode, n.Tag)
		}
		return e.writeNode(*n.Content.Node, depth+1)
	case ContentList:
		if len(n.Content.List) == 0 {
			e.buf = append(e.buf, token.ListEmpty)
			return nil
		}
		if err := e.writeListStart(len(n.Content.List)); err != nil {
			return fmt.Errorf("children of %q: %w", n.Tag, err)
		}
		for _, child := range n.Content.List {
			if err := e.writeNode(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	case ContentBytes:
		return e.writeBinary(n.Content.Bytes)
	default:
		return fmt.Errorf("%w: node %q has unknown content kind %d", ErrInvalidNode, n.Tag, n.Content.Kind)
	}
}

func (e *encoder) writeListStart(size int) error {
	switch {
	case size == 0:
		e.buf = append(e.buf, token.ListEmpty)
	case size < 256:
		e.buf = append(e.buf, token.List8, byte(size))
	case size <= MaxListSize:
		e.buf = append(e.buf, token.List16, byte(size>>8), byte(size))
	default:
		return fmt.Errorf("%w: list of %d entries", ErrSizeLimitExceeded, size)
	}
	return nil
}

// writeString picks the most compact form for s. JID forms are only tried
// when allowJID is set so that JID sub-fields never nest.
func (e *encoder) writeString(s string, allowJID bool) error {
	if code, ok := e.dict.LookupString(s); ok {
		if code.Double {
			e.buf = append(e.buf, token.Dictionary0+code.Page, code.Index)
		} else {
			e.buf = append(e.buf, code.Index)
		}
		return nil
	}

	if allowJID {
		if jid, ok := canonicalJID(s); ok {
			return e.writeJID(jid)
		}
	}

	if len(s) > 0 && len(s) <= token.PackedMax {
		if isNibbleString(s) {
			e.writePacked(s, token.Nibble8, packNibble)
			return nil
		}
		if isHexString(s) {
			e.writePacked(s, token.Hex8, packHex)
			return nil
		}
	}

	return e.writeBinary([]byte(s))
}

func canonicalJID(s string) (types.JID, bool) {
	jid, err := types.ParseJID(s)
	if err != nil || jid.String() != s {
		return types.JID{}, false
	}
	return jid, true
}

func (e *encoder) writeJID(jid types.JID) error {
	if domain, ok := jid.ADDomain(); ok && jid.IsAD() {
		e.buf = append(e.buf, token.ADJID, domain, byte(jid.Device))
		return e.writeString(jid.User, false)
	}

	e.buf = append(e.buf, token.JIDPair)
	if err := e.writeString(jid.UserPart(), false); err != nil {
		return err
	}
	return e.writeString(jid.Server, false)
}

func (e *encoder) writeBinary(data []byte) error {
	n := len(data)
	switch {
	case n < 1<<8:
		e.buf = append(e.buf, token.Binary8, byte(n))
	case n < 1<<20:
		e.buf = append(e.buf, token.Binary20, byte(n>>16)&0x0f, byte(n>>8), byte(n))
	case uint64(n) <= MaxBinarySize:
		e.buf = append(e.buf, token.Binary32, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return fmt.Errorf("%w: %d bytes of raw data", ErrSizeLimitExceeded, n)
	}
	e.buf = append(e.buf, data...)
	return nil
}

func (e *encoder) writePacked(s string, marker byte, pack func(byte) byte) {
	rounded := (len(s) + 1) / 2
	head := byte(rounded)
	if len(s)%2 == 1 {
		head |= 0x80
	}
	e.buf = append(e.buf, marker, head)

	for i := 0; i < len(s); i += 2 {
		hi := pack(s[i])
		lo := byte(packPad)
		if i+1 < len(s) {
			lo = pack(s[i+1])
		}
		e.buf = append(e.buf, hi<<4|lo)
	}
}
