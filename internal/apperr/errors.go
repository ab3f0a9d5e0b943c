// Package apperr defines the sentinel errors shared across the ledger services.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means the ledger file does not exist yet. Reads
	// treat this as an empty store; mutations surface it as not found.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreWriteFailed means a full rewrite of the ledger did not become
	// durable. The logical store keeps its previous contents.
	ErrStoreWriteFailed = errors.New("store write failed")

	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNotFound means an identifier addresses no current record.
	// ErrOutOfRange is its positional refinement and wraps it, so
	// errors.Is against either sentinel matches an out-of-range lookup.
	ErrNotFound   = errors.New("not found")
	ErrOutOfRange = fmt.Errorf("identifier out of range: %w", ErrNotFound)

	ErrMalformedRecord = errors.New("malformed record")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyQuery    = errors.New("empty query")

	// ErrConcurrentModification means the store changed between reading a
	// snapshot and writing it back; the write was refused.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrConfirmExpired means a delete confirmation token was unknown,
	// already used, or past its lifetime.
	ErrConfirmExpired = errors.New("confirmation expired")
)
