// Package mailer sends plain-text mail over SMTP.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers a single message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTP is an smtp.SendMail based Sender.
type SMTP struct {
	host     string
	port     int
	username string
	password string
	fromAddr string
	fromName string
}

// NewSMTP creates an SMTP mailer.
func NewSMTP(host string, port int, username, password, fromAddr, fromName string) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

// Send delivers a plain-text message. ctx cancellation is checked before the
// dial; smtp.SendMail itself does not support cancellation.
func (m *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from := m.fromAddr
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.fromAddr)
	}
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.fromAddr, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
