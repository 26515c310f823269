// Package apperr holds sentinel errors shared across wikipress packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrInvalidPath   = errors.New("invalid path")
)
