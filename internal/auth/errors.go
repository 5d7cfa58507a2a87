package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched by every validation error via errors.Is
	ErrInvalidInput = errors.New("invalid input")

	ErrEmailRequired      = &ValidationError{msg: "email is required"}
	ErrInvalidEmailFormat = &ValidationError{msg: "invalid email format"}
	ErrPasswordTooShort   = &ValidationError{msg: "password must be at least 6 characters"}
	ErrDisplayNameTooLong = &ValidationError{msg: "display name must be at most 100 characters"}
	ErrIncompleteProfile  = &ValidationError{msg: "provider profile is missing id or email"}

	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrInvalidCredentials covers unknown email, missing local password and wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("email not verified, please check your inbox")

	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrUnauthorized          = errors.New("not authenticated")
	ErrUpstreamUnavailable   = errors.New("identity provider unavailable")
	ErrIdentityConflict      = errors.New("account is already linked to a different identity")

	// ErrUnverifiedProviderEmail is an ErrIdentityConflict: an unverified provider
	// email never claims an existing account.
	ErrUnverifiedProviderEmail = fmt.Errorf("%w: provider has not verified the email", ErrIdentityConflict)
	ErrInvalidState          = errors.New("invalid oauth state")
)

// ValidationError is a client-fixable input error
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Is makes every ValidationError match ErrInvalidInput
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
