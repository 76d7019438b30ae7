package models

import "errors"

// Error kinds shared across components. Wrap with fmt.Errorf("...: %w", Err...)
// and test with errors.Is.
var (
	// ErrValidation marks input rejected without retry: empty question, missing
	// directory, mismatched lengths or dimensions on insert.
	ErrValidation = errors.New("validation failed")
	// ErrNotReady marks a query issued before an index was built or loaded.
	ErrNotReady = errors.New("index not ready")
	// ErrPersistence marks missing index artifacts on load.
	ErrPersistence = errors.New("index artifacts missing")
	// ErrSerialization marks malformed persisted index data.
	ErrSerialization = errors.New("malformed index data")
)
