package store

import (
	"errors"
	"fmt"
)

// ErrKeyPathNotFound reports an absent path on a typed read.
var ErrKeyPathNotFound = errors.New("key path not found")

// ErrStoreClosed reports an operation against a closed store.
var ErrStoreClosed = errors.New("store closed")

// ErrValidationFailed tags writes rejected by a validation rule in strict
// mode.
var ErrValidationFailed = errors.New("validation failed")

// ValidationError carries the failing path and rule error.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
