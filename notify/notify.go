// Package notify sends transactional email to account holders.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is a single email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ──────────────────────────────────────────────────
// SendGrid
// ──────────────────────────────────────────────────

// SendGrid delivers through the SendGrid v3 API.
type SendGrid struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

var _ Sender = (*SendGrid)(nil)

// NewSendGrid returns a sender using apiKey and the given from address.
func NewSendGrid(apiKey, fromName, fromAddr string) *SendGrid {
	return &SendGrid{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

// Send implements Sender.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("notify/sendgrid: send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify/sendgrid: send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Log
// ──────────────────────────────────────────────────

// LogSender writes messages to a logger and keeps them for inspection.
type LogSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*LogSender)(nil)

// NewLogSender returns a LogSender. A nil logger uses slog.Default.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (l *LogSender) Send(ctx context.Context, msg Message) error {
	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "email",
		"to", msg.ToEmail,
		"subject", msg.Subject,
	)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (l *LogSender) Sent() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.sent))
	copy(out, l.sent)
	return out
}

// ──────────────────────────────────────────────────
// Templates
// ──────────────────────────────────────────────────

// ExtrasGranted builds the message sent when a subscription is topped up.
func ExtrasGranted(toName, toEmail string, deltas map[string]int64) Message {
	text := "Your subscription has been upgraded with:\n"
	html := "<p>Your subscription has been upgraded with:</p><ul>"
	for _, k := range sortedKeys(deltas) {
		text += fmt.Sprintf("  %s: +%d\n", k, deltas[k])
		html += fmt.Sprintf("<li>%s: +%d</li>", k, deltas[k])
	}
	html += "</ul>"
	return Message{
		ToName:  toName,
		ToEmail: toEmail,
		Subject: "Your subscription has been upgraded",
		Text:    text,
		HTML:    html,
	}
}
