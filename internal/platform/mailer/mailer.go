// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mailer delivers the transactional emails of the auth flow.

Two implementations share one method set:

  - SMTPMailer: sends through an SMTP relay with go-mail.
  - LogMailer: writes the message to the structured log, for local development.

Delivery errors are returned to the caller; the auth handlers turn them into 500.
*/
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

const (
	subjectVerification  = "Verify your Bazaar account"
	subjectPasswordReset = "Reset your Bazaar password"

	sendTimeout = 10 * time.Second
)

// SMTPConfig holds the relay coordinates.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
	logger *slog.Logger
}

// NewSMTPMailer builds a client for the relay. No connection is opened until the first send.
func NewSMTPMailer(config SMTPConfig, logger *slog.Logger) (*SMTPMailer, error) {
	options := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(sendTimeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if config.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	client, err := mail.NewClient(config.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("mailer: failed to create smtp client: %w", err)
	}

	return &SMTPMailer{client: client, from: config.From, logger: logger}, nil
}

// SendVerificationCode emails a six digit verification code.
func (mailer *SMTPMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	message, err := buildMessage(mailer.from, email, subjectVerification, verificationBody(code))
	if err != nil {
		return err
	}
	return mailer.send(ctx, message, "verification")
}

// SendPasswordReset emails the single-use reset link.
func (mailer *SMTPMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	message, err := buildMessage(mailer.from, email, subjectPasswordReset, passwordResetBody(link))
	if err != nil {
		return err
	}
	return mailer.send(ctx, message, "password_reset")
}

func (mailer *SMTPMailer) send(ctx context.Context, message *mail.Msg, kind string) error {
	if err := mailer.client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("mailer: failed to send %s email: %w", kind, err)
	}
	mailer.logger.InfoContext(ctx, "email_sent", slog.String("kind", kind))
	return nil
}

// LogMailer writes outgoing mail to the log instead of sending it.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a development mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendVerificationCode implements the notifier contract.
func (mailer *LogMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	mailer.logger.InfoContext(ctx, "dev_email_verification",
		slog.String("to", email),
		slog.String("code", code),
	)
	return nil
}

// SendPasswordReset implements the notifier contract.
func (mailer *LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	mailer.logger.InfoContext(ctx, "dev_email_password_reset",
		slog.String("to", email),
		slog.String("link", link),
	)
	return nil
}

// # Message Composition

func buildMessage(from, to, subject, body string) (*mail.Msg, error) {
	message := mail.NewMsg()
	if err := message.From(from); err != nil {
		return nil, fmt.Errorf("mailer: invalid sender %q: %w", from, err)
	}
	if err := message.To(to); err != nil {
		return nil, fmt.Errorf("mailer: invalid recipient: %w", err)
	}
	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, body)
	return message, nil
}

func verificationBody(code string) string {
	return fmt.Sprintf("Welcome to Bazaar!\n\nYour verification code is: %s\n\nThe code expires in 15 minutes.\n", code)
}

func passwordResetBody(link string) string {
	return fmt.Sprintf("We received a request to reset your Bazaar password.\n\nOpen this link to choose a new password:\n%s\n\nThe link expires in 1 hour. If you did not ask for a reset, ignore this email.\n", link)
}
