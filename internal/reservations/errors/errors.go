package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	ErrAlreadyExists = errors.New("reservation already exists")

	ErrRoomNotFound = errors.New("room not found")

	ErrRoomUnavailable = errors.New("room is not available")

	// Window validity failures, reported in this fixed precedence.
	ErrStartAfterEnd  = errors.New("start time is after end time")
	ErrStartEqualsEnd = errors.New("start time equals end time")
	ErrInThePast      = errors.New("reservation window is in the past")

	ErrRoomAlreadyBooked = errors.New("room is already booked in this window")
)
