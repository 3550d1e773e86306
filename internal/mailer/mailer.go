// ABOUTME: Transactional email sender interface with API and log-only backends
// ABOUTME: Selected at startup from mail configuration

package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/constructhub/hub/internal/config"
)

// Message is a single transactional email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers transactional email. Delivery failures are reported but
// callers decide whether they are fatal.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// NewSender builds the sender named by the configuration.
func NewSender(cfg config.MailConfig) (Sender, error) {
	switch cfg.Sender {
	case "api":
		return NewAPISender(cfg), nil
	case "log":
		return &LogSender{logger: slog.Default().With("component", "mailer")}, nil
	default:
		return nil, fmt.Errorf("unknown mail sender %q", cfg.Sender)
	}
}

// LogSender logs messages instead of delivering them. Used in development.
type LogSender struct {
	logger *slog.Logger
}

// Send logs the message metadata and body.
func (s *LogSender) Send(_ context.Context, msg *Message) error {
	s.logger.Info("mail (log sender)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}
