package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Mailer is a testify mock of model.Mailer.
type Mailer struct {
	mock.Mock
}

func (m *Mailer) SendOTP(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

func (m *Mailer) SendAccountCreated(ctx context.Context, email, fullName string) error {
	args := m.Called(ctx, email, fullName)
	return args.Error(0)
}
