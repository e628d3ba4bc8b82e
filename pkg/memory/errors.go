package memory

import "errors"

var (
	// ErrUnknownType indicates a memory type name outside the known set.
	ErrUnknownType = errors.New("unknown memory type")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")
)
