package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avdeyev/schoolhub-server/internal/logger"
	"github.com/avdeyev/schoolhub-server/internal/model"
	"github.com/avdeyev/schoolhub-server/internal/otp"
)

// LockoutPolicy bounds failed password attempts per account.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// OTPPolicy controls one-time passcode generation.
type OTPPolicy struct {
	Length     int
	Expiration time.Duration
}

// Auth implements the OTP login flow: password check with lockout, OTP
// issuance over email, and OTP verification ending in a token pair.
type Auth struct {
	userStore    model.UserStore
	tokenService *TokenService
	mailer       model.Mailer
	logger       *logger.Logger
	lockout      LockoutPolicy
	otp          OTPPolicy
}

func NewAuth(
	userStore model.UserStore,
	tokenService *TokenService,
	mailer model.Mailer,
	logger *logger.Logger,
	lockout LockoutPolicy,
	otpPolicy OTPPolicy,
) *Auth {
	return &Auth{
		userStore:    userStore,
		tokenService: tokenService,
		mailer:       mailer,
		logger:       logger,
		lockout:      lockout,
		otp:          otpPolicy,
	}
}

// LoginResult confirms that an OTP was dispatched.
type LoginResult struct {
	Email string
}

// Session is an authenticated user with a freshly issued token pair.
type Session struct {
	User         model.User
	AccessToken  string
	RefreshToken string
}

// Login validates the password credential and, on success, stores and
// emails a one-time passcode. No tokens are issued at this step.
func (a *Auth) Login(ctx context.Context, email, password string) (LoginResult, error) {
	a.logger.Debug("Auth service: starting login", "email", email)

	user, err := a.userStore.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: user not found", "email", email)
		return LoginResult{}, model.ErrNotFound
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	now := time.Now()
	if user.IsLockedOut(a.lockout.MaxAttempts, a.lockout.Duration, now) {
		a.logger.Info("Auth service: account locked out",
			"email", email,
			"failed_attempts", user.FailedLoginAttempts)
		return LoginResult{}, &model.LockedOutError{RetryAfter: user.LockoutRemaining(a.lockout.Duration, now)}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, a.handleFailedPassword(ctx, user)
	}

	if err := a.userStore.ResetFailedLogins(ctx, user.ID); err != nil {
		return LoginResult{}, fmt.Errorf("failed to reset failed logins: %w", err)
	}

	code, err := otp.Generate(a.otp.Length)
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to generate otp: %w", err)
	}

	if err := a.userStore.SetOTP(ctx, user.ID, code, now.Add(a.otp.Expiration)); err != nil {
		return LoginResult{}, fmt.Errorf("failed to store otp: %w", err)
	}

	// The OTP is already committed. A failed send is logged, never
	// surfaced: the user can retry login to regenerate.
	if err := a.mailer.SendOTP(ctx, user.Email, code); err != nil {
		a.logger.Error("Auth service: failed to send otp email",
			"email", user.Email,
			"error", err.Error())
	} else {
		a.logger.Info("Auth service: otp sent", "email", user.Email)
	}

	return LoginResult{Email: user.Email}, nil
}

func (a *Auth) handleFailedPassword(ctx context.Context, user model.User) error {
	updated, err := a.userStore.RecordFailedLogin(ctx, user.ID, a.lockout.Duration)
	if err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}

	a.logger.Info("Auth service: failed login attempt",
		"email", user.Email,
		"failed_attempts", updated.FailedLoginAttempts)

	now := time.Now()
	if updated.IsLockedOut(a.lockout.MaxAttempts, a.lockout.Duration, now) {
		return &model.LockedOutError{RetryAfter: updated.LockoutRemaining(a.lockout.Duration, now)}
	}
	return model.ErrInvalidCredentials
}

// VerifyOTP exchanges a valid one-time passcode for a token pair. The code
// is the only lookup key; it is cleared on success so replay fails.
func (a *Auth) VerifyOTP(ctx context.Context, code string) (Session, error) {
	a.logger.Debug("Auth service: verifying otp")

	now := time.Now()
	user, err := a.userStore.GetByActiveOTP(ctx, code, now)
	if errors.Is(err, model.ErrNotFound) {
		return Session{}, model.ErrInvalidOTP
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to get user by otp: %w", err)
	}

	// Lockout still applies with a correct OTP: it is keyed on prior
	// failed password attempts.
	if user.IsLockedOut(a.lockout.MaxAttempts, a.lockout.Duration, now) {
		return Session{}, &model.LockedOutError{RetryAfter: user.LockoutRemaining(a.lockout.Duration, now)}
	}

	if err := a.userStore.ClearOTP(ctx, user.ID); err != nil {
		return Session{}, fmt.Errorf("failed to clear otp: %w", err)
	}

	accessToken, refreshToken, err := a.tokenService.Issue(ctx, user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue tokens: %w", err)
	}

	a.logger.Info("Auth service: otp login completed", "email", user.Email)

	return Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RegisterParams carries the fields needed to create an account.
type RegisterParams struct {
	Email      string
	Username   string
	Password   string
	FirstName  string
	MiddleName string
	LastName   string
	Role       model.Role
}

// Register creates a new account with a bcrypt password hash and sends a
// welcome email best-effort.
func (a *Auth) Register(ctx context.Context, params RegisterParams) (model.User, error) {
	a.logger.Debug("Auth service: registering user", "email", params.Email)

	existing, err := a.userStore.GetByEmail(ctx, params.Email)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	if existing.ID != uuid.Nil {
		return model.User{}, model.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := model.User{
		ID:           uuid.New(),
		Email:        params.Email,
		Username:     params.Username,
		FirstName:    params.FirstName,
		MiddleName:   params.MiddleName,
		LastName:     params.LastName,
		Role:         params.Role,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := a.userStore.Create(ctx, user)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	if err := a.mailer.SendAccountCreated(ctx, created.Email, created.FullName()); err != nil {
		a.logger.Error("Auth service: failed to send account created email",
			"email", created.Email,
			"error", err.Error())
	}

	a.logger.Info("Auth service: user registered", "email", created.Email)

	return created, nil
}
