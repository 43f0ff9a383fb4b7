package vectorindex

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen is returned by Add once the index has been frozen
	ErrFrozen = errors.New("index is frozen")
	// ErrDimensionMismatch is returned when an embedding length differs from the index dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// RetrievalError wraps a failure to embed or search
type RetrievalError struct {
	Op    string
	Cause error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval error during %s: %v", e.Op, e.Cause)
}

func (e *RetrievalError) Unwrap() error {
	return e.Cause
}
