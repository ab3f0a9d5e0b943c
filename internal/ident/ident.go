// Package ident maps between store positions and the zero-padded record
// identifiers exposed by the services.
//
// Identifiers are derived from position, not stored: the record at position
// 0 is "001". They are only meaningful against one store snapshot: a delete
// shifts every identifier after the removed position down by one. Callers
// must re-resolve identifiers against a fresh snapshot on every operation
// and never retain them across a mutating call.
package ident

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ashwell/tally/internal/apperr"
)

// FromPosition formats a zero-based store position as an identifier.
// Identifiers are padded to three digits and grow naturally beyond "999".
func FromPosition(pos int) string {
	return fmt.Sprintf("%03d", pos+1)
}

// Parse validates the identifier format and returns its numeric value.
// It does not bounds-check against any store length.
func Parse(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n <= 0 {
		return 0, apperr.ErrInvalidIdentifier
	}
	return n, nil
}

// ToPosition resolves an identifier to a zero-based position in a store of
// the given length. A malformed identifier fails with ErrInvalidIdentifier;
// a numeric identifier beyond the store length fails with ErrOutOfRange.
func ToPosition(id string, length int) (int, error) {
	n, err := Parse(id)
	if err != nil {
		return 0, err
	}
	if n > length {
		return 0, apperr.ErrOutOfRange
	}
	return n - 1, nil
}
