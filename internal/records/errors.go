package records

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a record name is already taken.
	ErrConflict = errors.New("record name already exists")
	// ErrInvalid is returned when record fields fail validation.
	ErrInvalid = errors.New("invalid record")
)
