// Package common defines sentinel errors and small helpers shared by the
// server and the terminal client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal    = errors.New("internal error")
	ErrorUnavailable = errors.New("service unavailable")
)
