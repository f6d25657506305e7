package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore defines persistence operations for users.
//
// RecordFailedLogin and ResetFailedLogins mutate the failed-attempt counter
// with a single SQL statement so concurrent login attempts against the same
// account never lose updates.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	// GetByActiveOTP returns the user holding the given one-time passcode
	// with an expiry strictly after now. ErrNotFound when no user matches
	// or, degenerately, more than one does.
	GetByActiveOTP(ctx context.Context, code string, now time.Time) (User, error)
	Create(ctx context.Context, user User) (User, error)
	// RecordFailedLogin increments the failed-attempt counter and stamps the
	// failure time, starting a fresh count when the previous lockout window
	// has already lapsed. Returns the updated user.
	RecordFailedLogin(ctx context.Context, id uuid.UUID, lockoutDuration time.Duration) (User, error)
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error
	SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id uuid.UUID) error
	SetAvatarKey(ctx context.Context, id uuid.UUID, key string) error
}

// Role enumerates the account roles of the school backend.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleTeacher       Role = "teacher"
	RoleParent        Role = "parent"
	RoleStudent       Role = "student"
)

// User represents a stored account with authentication state.
type User struct {
	ID                  uuid.UUID
	Email               string
	Username            string
	FirstName           string
	MiddleName          string
	LastName            string
	Role                Role
	PasswordHash        string
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	OTP                 *string
	OTPExpiryTime       *time.Time
	AvatarKey           *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           *time.Time
}

// IsLockedOut reports whether the account is currently locked out.
// Lockout is derived state: the counter crossed the threshold and the
// lockout window since the last failure has not yet lapsed. Nothing has
// to be cleared for the lock to expire.
func (u User) IsLockedOut(threshold int, duration time.Duration, now time.Time) bool {
	if u.FailedLoginAttempts < threshold || u.LastFailedLogin == nil {
		return false
	}
	return now.Before(u.LastFailedLogin.Add(duration))
}

// LockoutRemaining returns how long the current lockout still holds.
// Zero when the account is not locked out.
func (u User) LockoutRemaining(duration time.Duration, now time.Time) time.Duration {
	if u.LastFailedLogin == nil {
		return 0
	}
	remaining := u.LastFailedLogin.Add(duration).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FullName joins the user's name parts, skipping an empty middle name.
func (u User) FullName() string {
	name := u.FirstName
	if u.MiddleName != "" {
		name += " " + u.MiddleName
	}
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
