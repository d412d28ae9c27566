package filesystem

import (
	"errors"
	"fmt"
)

// Error kinds returned by tree operations. Match them with [errors.Is].
var (
	// ErrInvalidArgument is returned for empty or unencodable names and for
	// values that are neither file nor directory nodes.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a directory would be created where a
	// non-directory already exists.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when a child exists neither in memory nor on disk.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation is returned for line access on binary files.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrIOFailure wraps any underlying filesystem error. The original error
	// stays reachable through [errors.Is] and [errors.As].
	ErrIOFailure = errors.New("io failure")
)

func ioFailure(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIOFailure, op, path, err)
}
