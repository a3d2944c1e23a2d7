package auth

import "errors"

// ErrRandomness is returned when the system random source fails.
var ErrRandomness = errors.New("failed to read random bytes")
