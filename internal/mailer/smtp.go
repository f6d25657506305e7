package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/avdeyev/schoolhub-server/internal/model"
)

var _ model.Mailer = (*SMTP)(nil)

// SMTP delivers transactional mail through a single SMTP relay.
type SMTP struct {
	client   *mail.Client
	from     string
	siteName string
}

// Options configures the SMTP mailer.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SiteName string
	Timeout  time.Duration
}

// NewSMTP creates an SMTP mailer. Credentials are optional; without them
// the client connects unauthenticated (local relay setups).
func NewSMTP(opts Options) (*SMTP, error) {
	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithTimeout(opts.Timeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTP{
		client:   client,
		from:     opts.From,
		siteName: opts.SiteName,
	}, nil
}

// SendOTP emails a one-time passcode to the given address.
func (s *SMTP) SendOTP(ctx context.Context, email, code string) error {
	subject := fmt.Sprintf("Your %s login code", s.siteName)
	body := fmt.Sprintf(
		"Your one-time passcode is %s.\n\nIt expires shortly. If you did not request this code, ignore this email.\n",
		code,
	)
	return s.send(ctx, email, subject, body)
}

// SendAccountCreated emails a welcome notice to a new account holder.
func (s *SMTP) SendAccountCreated(ctx context.Context, email, fullName string) error {
	subject := fmt.Sprintf("Welcome to %s", s.siteName)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour %s account has been created successfully.\n",
		fullName, s.siteName,
	)
	return s.send(ctx, email, subject, body)
}

func (s *SMTP) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("failed to set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
