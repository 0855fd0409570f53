// Package store defines the persistence boundary shared by all store implementations.
package store

import "github.com/soundleaf/soundleaf-server/internal/errors"

// Sentinel errors returned by store implementations.
// They carry domain error codes so callers can branch with errors.Is.
var (
	ErrNotFound      = errors.NotFound("resource not found")
	ErrAlreadyExists = errors.Conflict("resource already exists")
	ErrInvalidInput  = errors.Validation("invalid input")
)
