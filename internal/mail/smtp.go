package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"

	"campauth/internal/config"
)

// SMTPMailer sends plain-text mail through a single SMTP relay.
type SMTPMailer struct {
	addr     string // host:port
	host     string
	user     string
	password string
	from     string
	fromName string
}

// NewSMTP builds a mailer from server configuration.
func NewSMTP(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		addr:     net.JoinHostPort(cfg.SMTPHost, cfg.SMTPPort),
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
	}
}

// Send delivers the message. Auth is skipped when no SMTP user is
// configured, which covers local relays in development.
func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}

	raw := []byte("From: " + m.fromName + " <" + m.from + ">\r\n" +
		"To: " + msg.To + "\r\n" +
		"Subject: " + msg.Subject + "\r\n\r\n" +
		msg.Body + "\r\n")

	if err := smtp.SendMail(m.addr, auth, m.from, []string{msg.To}, raw); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", m.addr, err)
	}
	return nil
}
