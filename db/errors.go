package db

import "fmt"

var (
	// ErrNotFound is returned when the profile of a user does not exist.
	ErrNotFound = fmt.Errorf("profile not found")
	// ErrInvalidData is returned when a user or customer id is empty.
	ErrInvalidData = fmt.Errorf("invalid data provided")
)
