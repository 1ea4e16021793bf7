package binary

import (
	"fmt"

	"github.com/opd-ai/wacore/binary/token"
	"github.com/opd-ai/wacore/types"
)

// Decode parses exactly one node from data. Any malformed input, including
// trailing bytes after the root node, yields a *DecodeError and no node.
func (c *Codec) Decode(data []byte) (*Node, error) {
	d := &decoder{dict: c.dict, data: data}
	n, err := d.readNode(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, d.errorf("%d trailing bytes after root node", len(d.data)-d.pos)
	}
	return &n, nil
}

type decoder struct {
	dict *token.Dictionary
	data []byte
	pos  int
}

func (d *decoder) errorf(format string, args ...interface{}) error {
	return &DecodeError{Offset: d.pos, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) need(n int) error {
	if n < 0 || len(d.data)-d.pos < n {
		return d.errorf("unexpected end of input: need %d bytes, have %d", n, len(d.data)-d.pos)
	}
	return nil
}

func (d *decoder) readByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) peekByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	return d.data[d.pos], nil
}

func (d *decoder) readInt(width int) (int, error) {
	if err := d.need(width); err != nil {
		return 0, err
	}
	v := 0
	for i := 0; i < width; i++ {
		v = v<<8 | int(d.data[d.pos+i])
	}
	d.pos += width
	return v, nil
}

// readRaw returns a fresh copy of the next n bytes.
func (d *decoder) readRaw(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.data[d.pos:d.pos+n])
	d.pos += n
	return out, nil
}

func isListMarker(b byte) bool {
	return b == token.ListEmpty || b == token.List8 || b == token.List16
}

func (d *decoder) readListSize(marker byte) (int, error) {
	switch marker {
	case token.ListEmpty:
		return 0, nil
	case token.List8:
		return d.readInt(1)
	case token.List16:
		return d.readInt(2)
	default:
		d.pos--
		return 0, d.errorf("expected list marker, got %d", marker)
	}
}

func (d *decoder) readNode(depth int) (Node, error) {
	marker, err := d.readByte()
	if err != nil {
		return Node{}, err
	}
	size, err := d.readListSize(marker)
	if err != nil {
		return Node{}, err
	}
	return d.readNodeBody(size, depth)
}

// readNodeBody reads the elements of a node whose list header announced size
// entries.
func (d *decoder) readNodeBody(size, depth int) (Node, error) {
	if depth >= MaxDepth {
		return Node{}, d.errorf("nesting deeper than %d", MaxDepth)
	}
	if size == 0 {
		return Node{}, d.errorf("empty node list")
	}

	tagPos := d.pos
	marker, err := d.peekByte()
	if err != nil {
		return Node{}, err
	}
	if marker == token.List8 || marker == token.List16 {
		return Node{}, d.errorf("node tag is not a string")
	}
	tag, err := d.readString(true)
	if err != nil {
		return Node{}, err
	}
	if tag == "" && marker == token.ListEmpty {
		d.pos = tagPos
		return Node{}, d.errorf("node tag is not a string")
	}

	n := Node{Tag: tag}
	attrCount := (size - 1) / 2
	if attrCount > 0 {
		n.Attrs = make(map[string]string, attrCount)
	}
	for i := 0; i < attrCount; i++ {
		keyPos := d.pos
		key, err := d.readString(true)
		if err != nil {
			return Node{}, err
		}
		if _, dup := n.Attrs[key]; dup {
			d.pos = keyPos
			return Node{}, d.errorf("duplicate attribute %q", key)
		}
		value, err := d.readString(true)
		if err != nil {
			return Node{}, err
		}
		n.Attrs[key] = value
	}

	if size%2 == 0 {
		content, err := d.readContent(depth)
		if err != nil {
			return Node{}, err
		}
		n.Content = content
	}
	return n, nil
}

func (d *decoder) readContent(depth int) (Content, error) {
	marker, err := d.peekByte()
	if err != nil {
		return Content{}, err
	}

	if !isListMarker(marker) {
		data, err := d.readBytes()
		if err != nil {
			return Content{}, err
		}
		return Content{Kind: ContentBytes, Bytes: data}, nil
	}

	d.pos++
	size, err := d.readListSize(marker)
	if err != nil {
		return Content{}, err
	}
	if size == 0 {
		return Content{Kind: ContentList}, nil
	}

	next, err := d.peekByte()
	if err != nil {
		return Content{}, err
	}
	if next != token.List8 && next != token.List16 {
		// The header belongs to a single child node.
		child, err := d.readNodeBody(size, depth+1)
		if err != nil {
			return Content{}, err
		}
		return Content{Kind: ContentNode, Node: &child}, nil
	}

	// Every child needs at least two bytes, which bounds the allocation.
	capacity := size
	if remaining := (len(d.data) - d.pos) / 2; capacity > remaining {
		capacity = remaining
	}
	list := make([]Node, 0, capacity)
	for i := 0; i < size; i++ {
		child, err := d.readNode(depth + 1)
		if err != nil {
			return Content{}, err
		}
		list = append(list, child)
	}
	return Content{Kind: ContentList, List: list}, nil
}

func (d *decoder) readString(allowJID bool) (string, error) {
	data, err := d.readStringBytes(allowJID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readBytes reads content in any string form.
func (d *decoder) readBytes() ([]byte, error) {
	return d.readStringBytes(true)
}

func (d *decoder) readStringBytes(allowJID bool) ([]byte, error) {
	start := d.pos
	marker, err := d.readByte()
	if err != nil {
		return nil, err
	}

	switch {
	case marker == token.ListEmpty:
		return []byte{}, nil
	case marker < token.Dictionary0:
		s, ok := d.dict.LookupToken(marker)
		if !ok {
			d.pos = start
			return nil, d.errorf("unknown token %d", marker)
		}
		return []byte(s), nil
	case marker <= token.Dictionary3:
		index, err := d.readByte()
		if err != nil {
			return nil, err
		}
		s, ok := d.dict.LookupDouble(marker-token.Dictionary0, index)
		if !ok {
			d.pos = start
			return nil, d.errorf("unknown double-byte token %d/%d", marker-token.Dictionary0, index)
		}
		return []byte(s), nil
	}

	switch marker {
	case token.Binary8:
		n, err := d.readInt(1)
		if err != nil {
			return nil, err
		}
		return d.readRaw(n)
	case token.Binary20:
		if err := d.need(3); err != nil {
			return nil, err
		}
		if d.data[d.pos]&0xf0 != 0 {
			return nil, d.errorf("invalid Binary20 length prefix")
		}
		n, _ := d.readInt(3)
		return d.readRaw(n)
	case token.Binary32:
		n, err := d.readInt(4)
		if err != nil {
			return nil, err
		}
		return d.readRaw(n)
	case token.Nibble8:
		return d.readPacked(unpackNibble)
	case token.Hex8:
		return d.readPacked(unpackHex)
	case token.ADJID, token.JIDPair:
		if !allowJID {
			d.pos = start
			return nil, d.errorf("nested jid marker %d", marker)
		}
		jid, err := d.readJID(marker)
		if err != nil {
			return nil, err
		}
		return []byte(jid), nil
	case token.List8, token.List16:
		d.pos = start
		return nil, d.errorf("expected string, got list marker %d", marker)
	default:
		d.pos = start
		return nil, d.errorf("unknown marker %d", marker)
	}
}

func (d *decoder) readJID(marker byte) (string, error) {
	if marker == token.ADJID {
		if err := d.need(2); err != nil {
			return "", err
		}
		domain, device := d.data[d.pos], d.data[d.pos+1]
		d.pos += 2
		user, err := d.readString(false)
		if err != nil {
			return "", err
		}
		return types.NewADJID(user, domain, device).String(), nil
	}

	user, err := d.readString(false)
	if err != nil {
		return "", err
	}
	server, err := d.readString(false)
	if err != nil {
		return "", err
	}
	if user == "" {
		return server, nil
	}
	return user + "@" + server, nil
}

func (d *decoder) readPacked(unpack func(byte) (byte, bool)) ([]byte, error) {
	head, err := d.readByte()
	if err != nil {
		return nil, err
	}
	rounded := int(head & 0x7f)
	odd := head&0x80 != 0
	if odd && rounded == 0 {
		d.pos--
		return nil, d.errorf("odd packed string with no bytes")
	}
	if err := d.need(rounded); err != nil {
		return nil, err
	}

	out := make([]byte, 0, rounded*2)
	for i := 0; i < rounded; i++ {
		b := d.data[d.pos]
		hi, ok := unpack(b >> 4)
		if !ok {
			return nil, d.errorf("invalid packed nibble %d", b>>4)
		}
		out = append(out, hi)

		lo := b & 0x0f
		if odd && i == rounded-1 {
			if lo != packPad {
				return nil, d.errorf("invalid packed padding %d", lo)
			}
		} else {
			c, ok := unpack(lo)
			if !ok {
				return nil, d.errorf("invalid packed nibble %d", lo)
			}
			out = append(out, c)
		}
		d.pos++
	}
	return out, nil
}
