// Package token holds the string dictionary and the wire marker bytes used by
// the binary node codec.
//
// The dictionary is an optimization: any string that is not in it is written
// with one of the generic string forms instead. A Dictionary is immutable once
// built and can be shared by any number of encoders and decoders without
// synchronization.
package token

import (
	"errors"
	"fmt"
	"sync"
)

// Wire marker bytes. Codes 1..235 are single-byte dictionary tokens.
const (
	ListEmpty   = 0
	Dictionary0 = 236
	Dictionary1 = 237
	Dictionary2 = 238
	Dictionary3 = 239
	ADJID       = 247
	List8       = 248
	List16      = 249
	JIDPair     = 250
	Hex8        = 251
	Binary8     = 252
	Binary20    = 253
	Binary32    = 254
	Nibble8     = 255

	// PackedMax is the longest string that may be nibble or hex packed.
	PackedMax = 127
)

const (
	// MaxSingleByteTokens is the number of codes available before Dictionary0.
	MaxSingleByteTokens = Dictionary0
	// MaxDoubleBytePages is the number of double-byte dictionary pages.
	MaxDoubleBytePages = 4
	// MaxDoubleBytePageSize is the number of entries per double-byte page.
	MaxDoubleBytePageSize = 256
)

var (
	// ErrTooManyTokens indicates a table does not fit in the code space.
	ErrTooManyTokens = errors.New("too many tokens")
	// ErrDuplicateToken indicates a string appears more than once.
	ErrDuplicateToken = errors.New("duplicate token")
)

// Code is the wire representation of a dictionary string: either a single
// byte (Double == false) or a page marker followed by an index byte.
type Code struct {
	Double bool
	Page   uint8
	Index  uint8
}

// Dictionary maps strings to codes and back.
type Dictionary struct {
	single []string
	double [][]string
	index  map[string]Code
}

var (
	defaultOnce sync.Once
	defaultDict *Dictionary
)

// Default returns the process-wide dictionary built from the protocol table.
func Default() *Dictionary {
	defaultOnce.Do(func() {
		d, err := New(singleByteTokens[:], nil)
		if err != nil {
			panic(fmt.Sprintf("token: invalid built-in table: %v", err))
		}
		defaultDict = d
	})
	return defaultDict
}

// New builds a dictionary from a single-byte table and up to four double-byte
// pages. Index 0 of the single-byte table is never looked up by string because
// code 0 is ListEmpty on the wire.
func New(single []string, double [][]string) (*Dictionary, error) {
	if len(single) > MaxSingleByteTokens {
		return nil, fmt.Errorf("%w: %d single-byte entries, limit %d", ErrTooManyTokens, len(single), MaxSingleByteTokens)
	}
	if len(double) > MaxDoubleBytePages {
		return nil, fmt.Errorf("%w: %d double-byte pages, limit %d", ErrTooManyTokens, len(double), MaxDoubleBytePages)
	}

	d := &Dictionary{
		single: append([]string(nil), single...),
		double: make([][]string, len(double)),
		index:  make(map[string]Code, len(single)),
	}

	for i, s := range single {
		if i == 0 {
			continue
		}
		if _, dup := d.index[s]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateToken, s)
		}
		d.index[s] = Code{Index: uint8(i)}
	}

	for p, page := range double {
		if len(page) > MaxDoubleBytePageSize {
			return nil, fmt.Errorf("%w: page %d has %d entries", ErrTooManyTokens, p, len(page))
		}
		d.double[p] = append([]string(nil), page...)
		for i, s := range page {
			if _, dup := d.index[s]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateToken, s)
			}
			d.index[s] = Code{Double: true, Page: uint8(p), Index: uint8(i)}
		}
	}

	return d, nil
}

// LookupString returns the code for s, if s is in the dictionary.
func (d *Dictionary) LookupString(s string) (Code, bool) {
	if s == "" {
		return Code{}, false
	}
	c, ok := d.index[s]
	return c, ok
}

// LookupToken returns the string for a single-byte code.
func (d *Dictionary) LookupToken(b byte) (string, bool) {
	if b == ListEmpty || int(b) >= len(d.single) {
		return "", false
	}
	return d.single[b], true
}

// LookupDouble returns the string at index of the given double-byte page.
func (d *Dictionary) LookupDouble(page, index byte) (string, bool) {
	if int(page) >= len(d.double) || int(index) >= len(d.double[page]) {
		return "", false
	}
	return d.double[page][index], true
}

// Len returns the number of strings that can be tokenized.
func (d *Dictionary) Len() int {
	return len(d.index)
}
