package errors

import "errors"

var (
	ErrNotFound = errors.New("organization not found")

	ErrInvalidID = errors.New("invalid organization ID format")

	ErrAlreadyExists = errors.New("organization already exists")
)
