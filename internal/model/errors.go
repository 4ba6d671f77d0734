package model

import (
	"errors"
	"fmt"
)

var (
	// Credential store lookups. These never reach a client directly: the
	// services fold them into the generic errors below.
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrOrgNodeNotFound   = errors.New("organizational node not found")
	ErrResetNotFound     = errors.New("reset token not found")

	// Authentication
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUnauthorized       = errors.New("unauthorized")

	// Authorization
	ErrForbidden = errors.New("forbidden")

	// Credential lifecycle
	ErrIncorrectPassword = errors.New("incorrect current password")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

type TokenErrorKind string

const (
	TokenMalformed TokenErrorKind = "malformed"
	TokenExpired   TokenErrorKind = "expired"
	TokenSignature TokenErrorKind = "signature"
	TokenRevoked   TokenErrorKind = "revoked"
)

// TokenError reports why a bearer token was rejected.
type TokenError struct {
	Kind TokenErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
	}
	return "token " + string(e.Kind)
}

func (e *TokenError) Unwrap() error { return e.Err }

func NewTokenError(kind TokenErrorKind, err error) *TokenError {
	return &TokenError{Kind: kind, Err: err}
}

// IsTokenError reports whether err is a TokenError of any of the given kinds
// (or of any kind when none are given).
func IsTokenError(err error, kinds ...TokenErrorKind) bool {
	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, kind := range kinds {
		if tokenErr.Kind == kind {
			return true
		}
	}
	return false
}

// ValidationError is a field-level input problem. It carries no account
// state and is safe to show to the caller verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
