package errors

import "errors"

var (
	ErrNotFound = errors.New("room not found")

	ErrInvalidID = errors.New("invalid room ID format")

	ErrAlreadyExists = errors.New("room already exists")

	ErrOrganizationNotFound = errors.New("organization not found")

	ErrUnavailable = errors.New("room is not available")
)
