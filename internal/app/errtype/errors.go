package errtype

import "errors"

var (
	// ErrNotFound represents the error for the cases when some entity is not found.
	ErrNotFound = errors.New("not found")
	// ErrBadInput represents the error for the cases when the input is invalid.
	ErrBadInput = errors.New("bad input")
	// ErrConflict represents the error for the cases when the entity already exists.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized represents the error for the cases when the API access key is wrong.
	ErrUnauthorized = errors.New("unauthorized")
)
