package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/avdeyev/schoolhub-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

type UserRepository struct {
	db *Connection
}

func NewUserRepository(db *Connection) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

const userColumns = `id, email, username, first_name, middle_name, last_name, role, password_hash,
	failed_login_attempts, last_failed_login, otp, otp_expiry_time, avatar_key,
	created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.FirstName, &user.MiddleName, &user.LastName,
		&user.Role, &user.PasswordHash, &user.FailedLoginAttempts, &user.LastFailedLogin,
		&user.OTP, &user.OTPExpiryTime, &user.AvatarKey,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	)
	return user, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}

	return user, nil
}

// GetByActiveOTP looks a user up by an unexpired one-time passcode. The
// code must match exactly one user; anything else is reported as not found.
func (r *UserRepository) GetByActiveOTP(ctx context.Context, code string, now time.Time) (model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
			  WHERE otp = $1 AND otp_expiry_time > $2 AND deleted_at IS NULL
			  LIMIT 2`

	rows, err := r.db.Query(ctx, query, code, now)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user by otp: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return model.User{}, fmt.Errorf("failed to scan user by otp: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return model.User{}, fmt.Errorf("failed to iterate users by otp: %w", err)
	}

	if len(users) != 1 {
		return model.User{}, model.ErrNotFound
	}

	return users[0], nil
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	query := `INSERT INTO users (id, email, username, first_name, middle_name, last_name, role, password_hash, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  RETURNING ` + userColumns

	savedUser, err := scanUser(r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.Username, user.FirstName, user.MiddleName, user.LastName,
		user.Role, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	))
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	return savedUser, nil
}

// RecordFailedLogin bumps the failed-attempt counter in a single UPDATE so
// concurrent failures against the same account never lose increments. A
// failure arriving after the previous lockout window has lapsed starts a
// fresh count instead of re-locking the account immediately.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id uuid.UUID, lockoutDuration time.Duration) (model.User, error) {
	query := `UPDATE users
			  SET failed_login_attempts = CASE
			          WHEN last_failed_login IS NULL OR last_failed_login < NOW() - make_interval(secs => $2) THEN 1
			          ELSE failed_login_attempts + 1
			      END,
			      last_failed_login = NOW(),
			      updated_at = NOW()
			  WHERE id = $1 AND deleted_at IS NULL
			  RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, id, lockoutDuration.Seconds()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to record failed login: %w", err)
	}

	return user, nil
}

func (r *UserRepository) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users
			  SET failed_login_attempts = 0, last_failed_login = NULL, updated_at = NOW()
			  WHERE id = $1 AND deleted_at IS NULL`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to reset failed logins: %w", err)
	}
	return nil
}

// SetOTP stores a new one-time passcode, overwriting any previous one.
func (r *UserRepository) SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	query := `UPDATE users
			  SET otp = $2, otp_expiry_time = $3, updated_at = NOW()
			  WHERE id = $1 AND deleted_at IS NULL`

	if _, err := r.db.Exec(ctx, query, id, code, expiresAt); err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}
	return nil
}

func (r *UserRepository) ClearOTP(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users
			  SET otp = NULL, otp_expiry_time = NULL, updated_at = NOW()
			  WHERE id = $1 AND deleted_at IS NULL`

	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to clear otp: %w", err)
	}
	return nil
}

func (r *UserRepository) SetAvatarKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `UPDATE users
			  SET avatar_key = $2, updated_at = NOW()
			  WHERE id = $1 AND deleted_at IS NULL`

	if _, err := r.db.Exec(ctx, query, id, key); err != nil {
		return fmt.Errorf("failed to set avatar key: %w", err)
	}
	return nil
}
