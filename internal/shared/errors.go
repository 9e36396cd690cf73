package shared

import "errors"

var (
	// ErrNotFound indicates the referenced user or tuple does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDenied indicates a structurally valid request that violates a
	// business precondition: revoking a permission not held, checking a
	// permission that is denied, or granting on behalf of the superuser.
	ErrDenied = errors.New("permission denied")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated caller without the required
	// permission.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate indicates an entity that already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrUnavailable wraps store I/O failures so callers can distinguish
	// "denied" from "could not determine".
	ErrUnavailable = errors.New("store unavailable")
)
