package model

import "errors"

var (
	// Conflict
	ErrEmailTaken = errors.New("email already registered")

	// Invalid input
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

	// Unauthorized
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrInvalidVerification = errors.New("invalid or expired verification token")
	ErrUnauthorized        = errors.New("unauthorized")
)
