package dao

import "errors"

var (
	// ErrInvalidID is returned when an entity's key is the zero value.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when persisting a nil pointer.
	ErrNilEntity = errors.New("dao: nil entity")
)
