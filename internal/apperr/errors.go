// Package apperr holds the sentinel errors shared by services, repositories and handlers.
package apperr

import "errors"

var (
	// repository errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// authentication errors
	ErrUnauthorized       = errors.New("could not validate credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidScope       = errors.New("invalid scope for token")
	ErrUnprocessableToken = errors.New("invalid token for email verification")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")

	ErrBadRequest = errors.New("bad request")
)
