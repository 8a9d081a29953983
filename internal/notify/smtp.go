package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/storefront/storefront-api/jobs"
)

// SMTPConfig describes the outbound mail relay.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	MaxRetries uint64
	Backoff    time.Duration
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers rendered emails through an SMTP relay, retrying
// transient failures with exponential backoff. Permanent failures are
// wrapped in jobs.ErrUndeliverable.
type SMTPMailer struct {
	cfg      SMTPConfig
	logger   *slog.Logger
	sendMail sendMailFunc
}

// NewSMTPMailer constructs a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &SMTPMailer{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

// Deliver implements jobs.Mailer.
func (m *SMTPMailer) Deliver(ctx context.Context, payload jobs.SendEmailPayload) error {
	from, err := mail.ParseAddress(m.cfg.From)
	if err != nil {
		return fmt.Errorf("notify: sender address: %w: %w", jobs.ErrUndeliverable, err)
	}
	to, err := mail.ParseAddress(payload.To)
	if err != nil {
		return fmt.Errorf("notify: recipient address: %w: %w", jobs.ErrUndeliverable, err)
	}
	msg := buildMessage(from, to, payload.Subject, payload.Body)
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	backoff := retry.WithMaxRetries(m.cfg.MaxRetries, retry.NewExponential(m.cfg.Backoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := m.sendMail(addr, auth, from.Address, []string{to.Address}, msg); err != nil {
			m.logger.Warn("smtp send attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
			if permanent(err) {
				return fmt.Errorf("notify: smtp: %w: %w", jobs.ErrUndeliverable, err)
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}

// permanent reports whether the relay rejected the message with a 5xx reply.
// Network errors and 4xx replies are worth another attempt.
func permanent(err error) bool {
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code >= 500
}

func buildMessage(from, to *mail.Address, subject, html string) []byte {
	var buf bytes.Buffer
	buf.WriteString("From: " + from.String() + "\r\n")
	buf.WriteString("To: " + to.String() + "\r\n")
	buf.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	buf.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(html)
	return buf.Bytes()
}
