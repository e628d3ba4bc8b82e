// Package core provides the MemoLite client that wires the memory pipeline together.
package core

import (
	"errors"
	"fmt"

	"github.com/Jerrylingj/MemoLite/pkg/extraction"
	"github.com/Jerrylingj/MemoLite/pkg/memory"
	"github.com/Jerrylingj/MemoLite/pkg/semantic"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	// It is the same value as memory.ErrInvalidInput.
	ErrInvalidInput = memory.ErrInvalidInput

	// ErrEmbeddingFailed indicates that embedding generation failed.
	// It is the same value as semantic.ErrEmbeddingFailed.
	ErrEmbeddingFailed = semantic.ErrEmbeddingFailed

	// ErrExtractorUnavailable indicates that Ingest was called on a client
	// configured without an LLM provider.
	ErrExtractorUnavailable = errors.New("extractor not configured")

	// ErrLLMOperation indicates that an LLM operation failed.
	// It is the same value as extraction.ErrLLMOperation.
	ErrLLMOperation = extraction.ErrLLMOperation
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Remember",
//	    Err: ErrEmbeddingFailed,
//	}
//	// Error() returns: "memolite: Remember: embedding generation failed"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "memolite: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("memolite: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Remember", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Remember", "Recall", "Ingest")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
