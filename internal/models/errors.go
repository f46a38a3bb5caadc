package models

import "errors"

var (
	// ErrNotFound is returned by stores when no live record matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
)
