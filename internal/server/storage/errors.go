package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this email already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrTokenNotFound indicates that refresh token does not match the stored one
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrCodeNotFound indicates that no matching verification code is outstanding
	ErrCodeNotFound = errors.New("verification code not found")
)
