package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest means the caller omitted a required identifier.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound means nothing matched. It is a result, not a failure.
	ErrNotFound = errors.New("no matching contact")
	// ErrStorageFailure wraps any error returned by the store.
	ErrStorageFailure = errors.New("storage failure")
	// ErrInvariantViolation means stored data breaks the one-hop cluster shape.
	ErrInvariantViolation = errors.New("invariant violation")
)

func invalidRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
