package model

import "context"

// Mailer delivers transactional email to account holders.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
	SendAccountCreated(ctx context.Context, email, fullName string) error
}
