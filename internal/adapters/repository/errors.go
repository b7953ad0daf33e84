package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrPartitionMismatch = errors.New("result does not belong to partition")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrStaleResults      = errors.New("results changed since they were read")
)
