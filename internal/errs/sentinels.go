// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels shared by the device and records layers.
var (
	// ErrConnection indicates the terminal could not be reached or timed out.
	ErrConnection = errors.New("connection failed")

	// ErrProtocol indicates the terminal rejected an operation mid-session.
	ErrProtocol = errors.New("protocol failure")

	// ErrNotFound indicates the target identity does not exist on the terminal.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates an enrollment with an already-used name.
	ErrDuplicateName = errors.New("user already exists")
)
