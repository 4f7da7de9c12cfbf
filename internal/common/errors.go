// Package common defines sentinel errors and storage keys shared by the
// client packages. Callers should use errors.Is to match the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Backend availability errors.
	ErrNotConfigured = errors.New("Backend not configured. Please set SUPABASE_URL and SUPABASE_ANON_KEY.")
	ErrOffline       = errors.New("offline")
	ErrUnavailable   = errors.New("backend unavailable")

	// Auth errors.
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAlreadyRegistered   = errors.New("user already registered")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenInvalid = errors.New("invalid refresh token")
)
