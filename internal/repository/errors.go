// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios without
// inspecting driver-specific error strings.
package repository

import "errors"

// ErrNotFound is returned when a row with the requested identifier does
// not exist. Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they are not allowed to touch, such as toggling the shared
// flag of a file owned by someone else. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned by user creation when the email address is
// already registered. Handlers should translate this into an HTTP 409.
var ErrEmailExists = errors.New("email already exists")
