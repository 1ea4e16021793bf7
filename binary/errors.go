package binary

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is matched by every *DecodeError.
	ErrDecode = errors.New("binary decode failed")
	// ErrSizeLimitExceeded indicates a node cannot be represented on the wire.
	ErrSizeLimitExceeded = errors.New("binary size limit exceeded")
	// ErrInvalidNode indicates a node that is structurally unusable, such as
	// ContentNode with a nil child.
	ErrInvalidNode = errors.New("invalid node")
)

// DecodeError describes malformed input at a byte offset.
type DecodeError struct {
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("binary decode failed at offset %d: %s", e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrDecode) true for any *DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
