package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// Mailer sends a single HTML email. Delivery is best-effort: callers log
// failures but never fail a user-facing flow because an email did not go out.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// noopMailer is used in development when no SMTP credentials are configured.
type noopMailer struct {
	log *slog.Logger
}

// NewNoopMailer returns a Mailer that only logs.
func NewNoopMailer(log *slog.Logger) Mailer {
	return &noopMailer{log: log}
}

func (m *noopMailer) Send(_ context.Context, to, subject, _ string) error {
	m.log.Info("noop mailer: skipping email delivery", "to", to, "subject", subject)
	return nil
}

// PasswordResetBody renders the password reset email.
func PasswordResetBody(resetURL string) (subject, htmlBody string) {
	subject = "Reset your password"
	htmlBody = fmt.Sprintf(
		`<p>We received a request to reset your password.</p>
<p><a href="%s">Reset password</a></p>
<p>If you did not request this, you can ignore this email. The link expires in 15 minutes.</p>`,
		resetURL)
	return subject, htmlBody
}

// VerificationBody renders the email-verification email.
func VerificationBody(verifyURL string) (subject, htmlBody string) {
	subject = "Verify your email address"
	htmlBody = fmt.Sprintf(
		`<p>Welcome! Please confirm your email address.</p>
<p><a href="%s">Verify email</a></p>
<p>The link expires in 24 hours.</p>`,
		verifyURL)
	return subject, htmlBody
}
