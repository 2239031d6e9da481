// Package mail sends the account emails: verification, password recovery,
// email change confirmation and the provider registration notice.
package mail

import (
	"context"
	"fmt"
	"log"
	"time"

	gomail "github.com/wneessen/go-mail"
)

const defaultTimeout = 15 * time.Second

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPConfig configures SMTPSender. Secure selects implicit TLS (port 465 style);
// otherwise STARTTLS is used when the server offers it.
type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Pass     string
	From     string
	FromName string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	client   *gomail.Client
	from     string
	fromName string
}

// NewSMTPSender returns a sender for cfg. It does not dial until the first Send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail: SMTP host not configured")
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(defaultTimeout),
	}
	if cfg.Secure {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Pass),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("mail: smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From, fromName: cfg.FromName}, nil
}

// Send dials the relay and delivers m. Does not log the body, which may carry tokens.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.from); err != nil {
		return fmt.Errorf("mail: from: %w", err)
	}
	if err := msg.ReplyToFormat(s.fromName, s.from); err != nil {
		return fmt.Errorf("mail: reply-to: %w", err)
	}
	if err := msg.To(m.To); err != nil {
		return fmt.Errorf("mail: to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	if m.Text != "" {
		msg.AddAlternativeString(gomail.TypeTextPlain, m.Text)
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mail: send %q: %w", m.Subject, err)
	}
	return nil
}

// LogSender only logs recipient and subject. Used when no SMTP relay is configured.
type LogSender struct{}

// Send logs m without its body.
func (LogSender) Send(_ context.Context, m Message) error {
	log.Printf("mail: smtp not configured, dropping %q to %s", m.Subject, m.To)
	return nil
}
