package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends plain text emails through an SMTP relay.
type Mailer struct {
	Host     string
	Port     string
	Sender   string
	Password string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer returns a Mailer. An empty host disables delivery.
func NewMailer(host, port, sender, password string) *Mailer {
	return &Mailer{Host: host, Port: port, Sender: sender, Password: password, send: smtp.SendMail}
}

// ErrDisabled is returned when no SMTP host is configured.
var ErrDisabled = errors.New("email delivery is not configured")

// BuildMessage renders the RFC 822 message for a plain text email.
func BuildMessage(from, to, subject, body string) []byte {
	return []byte("From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + body + "\r\n")
}

// Send sends a plain text email using SMTP.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if m.Host == "" {
		return ErrDisabled
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.Sender, m.Password, m.Host)
	address := m.Host + ":" + m.Port

	err := m.send(address, auth, m.Sender, []string{to}, BuildMessage(m.Sender, to, subject, body))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
