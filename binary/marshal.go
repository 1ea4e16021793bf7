package binary

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/wacore/limits"
)

// FlagCompressed marks a marshaled buffer whose body is zlib compressed.
const FlagCompressed byte = 2

// Marshal encodes n and prefixes the flags byte. This is the form carried
// inside transport frames.
func Marshal(n Node) ([]byte, error) {
	encoded, err := Encode(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+len(encoded))
	copy(out[1:], encoded)
	return out, nil
}

// MarshalCompressed encodes n, compresses it with zlib and sets FlagCompressed.
func MarshalCompressed(n Node) ([]byte, error) {
	encoded, err := Encode(n)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(FlagCompressed)
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(encoded); err != nil {
		return nil, fmt.Errorf("compress node: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress node: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "MarshalCompressed",
		"tag":        n.Tag,
		"plain_size": len(encoded),
		"wire_size":  buf.Len(),
	}).Debug("Compressed node")

	return buf.Bytes(), nil
}

// Unmarshal reverses Marshal and MarshalCompressed. Inflated bodies larger
// than limits.MaxInflatedNode are rejected.
func Unmarshal(data []byte) (*Node, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Offset: 0, Reason: "missing flags byte"}
	}

	flags, body := data[0], data[1:]
	if flags&FlagCompressed == 0 {
		return Decode(body)
	}

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &DecodeError{Offset: 1, Reason: fmt.Sprintf("open zlib stream: %v", err)}
	}
	defer zr.Close()

	inflated, err := io.ReadAll(io.LimitReader(zr, limits.MaxInflatedNode+1))
	if err != nil {
		return nil, &DecodeError{Offset: 1, Reason: fmt.Sprintf("inflate: %v", err)}
	}
	if len(inflated) > limits.MaxInflatedNode {
		return nil, &DecodeError{Offset: 1, Reason: fmt.Sprintf("inflated node exceeds %d bytes", limits.MaxInflatedNode)}
	}

	return Decode(inflated)
}
