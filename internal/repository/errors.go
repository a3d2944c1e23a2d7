package repository

import "errors"

// Common repository errors that can be tested for
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrInvalidInput       = errors.New("invalid input")
)
