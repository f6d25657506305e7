package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by stores when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned when a password check fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOTP covers both unknown and expired one-time passcodes.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrEmailTaken is returned on registration with an already used email.
	ErrEmailTaken = errors.New("email already taken")
)

// LockedOutError is returned while an account is locked out after repeated
// failed login attempts. RetryAfter carries the remaining lockout duration
// for client display.
type LockedOutError struct {
	RetryAfter time.Duration
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("account locked out, try again in %s", e.RetryAfter.Round(time.Second))
}
