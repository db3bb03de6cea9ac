// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sender delivers transactional mail (verification codes, poll invites).
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	Addr string // host:port
	From string
}

func (s *SMTPSender) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.Addr, nil, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender logs instead of sending. Used in development when no SMTP relay
// is configured, and by tests.
type LogSender struct{}

func (LogSender) Send(to, subject, body string) error {
	slog.Info("mail (not sent, no SMTP configured)", "to", to, "subject", subject)
	return nil
}
