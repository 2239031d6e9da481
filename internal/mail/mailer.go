package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Subjects of the account emails.
const (
	SubjectVerifyEmail          = "Verify your email"
	SubjectRecoverPassword      = "Recover your password"
	SubjectChangeEmail          = "Confirm your new email"
	SubjectRegisteredByProvider = "Gracias por registrarte"
)

// Mailer renders account emails and hands them to a Sender. Links are built
// from VerifyURL (verification) and FrontendURL (recovery, email change).
type Mailer struct {
	sender      Sender
	verifyURL   string
	frontendURL string
}

// NewMailer returns a Mailer that delivers through sender.
func NewMailer(sender Sender, verifyURL, frontendURL string) *Mailer {
	return &Mailer{
		sender:      sender,
		verifyURL:   verifyURL,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// SendVerifyEmail mails the verification link VERIFY_URL?token=<token>.
func (m *Mailer) SendVerifyEmail(ctx context.Context, to, token string) error {
	return m.send(ctx, to, SubjectVerifyEmail, "verify_email.html", map[string]string{
		"Link": withToken(m.verifyURL, token),
	})
}

// SendRecoverPassword mails the link FRONTEND_URL/recover-password?token=<token>.
func (m *Mailer) SendRecoverPassword(ctx context.Context, to, token string) error {
	return m.send(ctx, to, SubjectRecoverPassword, "recover_password.html", map[string]string{
		"Link": withToken(m.frontendURL+"/recover-password", token),
	})
}

// SendChangeEmail mails the link FRONTEND_URL/change-email?token=<token> to the new address.
func (m *Mailer) SendChangeEmail(ctx context.Context, to, token string) error {
	return m.send(ctx, to, SubjectChangeEmail, "change_email.html", map[string]string{
		"Link": withToken(m.frontendURL+"/change-email", token),
	})
}

// SendRegisteredWithProvider tells to that an account was created through provider.
func (m *Mailer) SendRegisteredWithProvider(ctx context.Context, to, provider string) error {
	return m.send(ctx, to, SubjectRegisteredByProvider, "registered_with_provider.html", map[string]string{
		"Provider": provider,
		"Link":     m.frontendURL,
	})
}

func (m *Mailer) send(ctx context.Context, to, subject, name string, data map[string]string) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("mail: render %s: %w", name, err)
	}
	return m.sender.Send(ctx, Message{
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
		Text:    subject + "\n\n" + data["Link"],
	})
}

func withToken(base, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}
