package api

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers a single HTML email. Implementations must return an
// error on any non-delivery; callers treat that as reportable, never fatal.
type EmailSender interface {
	Send(to, subject, htmlBody string) error
}

// mailer is swapped out in tests.
var mailer EmailSender = sendgridSender{}

var errEmailNotConfigured = errors.New("SENDGRID_API_KEY is not configured on backend")

type sendgridSender struct{}

func (sendgridSender) Send(to, subject, htmlBody string) error {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	if apiKey == "" {
		return errEmailNotConfigured
	}
	fromEmail := os.Getenv("SENDGRID_FROM_EMAIL")
	if fromEmail == "" {
		fromEmail = "onboarding@portfoliopilot.app"
	}

	from := mail.NewEmail("PortfolioPilot", fromEmail)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail("", to), "", htmlBody)
	client := sendgrid.NewSendClient(apiKey)

	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid error: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// sendMailWithTimeout runs fn and returns an error if it doesn't complete within timeout.
// It does not forcibly cancel the underlying network dial; a soft timeout is enough here
// because delivery failure is reported, not retried.
func sendMailWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return errors.New("email send timed out")
	}
}

// sendVerificationEmail mails the capability URL to the verifier. Returns
// whether the mail went out and a diagnostic string when it did not; the
// verification request itself is already durable either way.
func sendVerificationEmail(verifierEmail, verifyURL string) (bool, string) {
	subject := "Verify a student achievement on PortfolioPilot"
	body := "<p>A student asked you to confirm their achievement on PortfolioPilot.</p>" +
		"<p><strong>Click the link below to sign in and verify:</strong></p>" +
		"<p><a href=\"" + verifyURL + "\">" + verifyURL + "</a></p>" +
		"<p>This link is single-use. If you don't have an account, you'll get one when you click.</p>"

	cb := GetBreaker("email_send")
	if !cb.Allow() {
		return false, "email circuit open"
	}

	timeout := 5 * time.Second
	if ms := parseEnvInt("PILOT_EMAIL_TIMEOUT_MS", 0); ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}

	start := time.Now()
	err := sendMailWithTimeout(timeout, func() error { return mailer.Send(verifierEmail, subject, body) })
	success := err == nil
	RecordExternalOp("email_send", time.Since(start), success)
	if success {
		cb.ReportSuccess()
		return true, ""
	}
	if !errors.Is(err, errEmailNotConfigured) {
		// configuration absence is expected in dev; don't trip the breaker on it
		cb.ReportFailure()
	}
	return false, err.Error()
}
