// ABOUTME: HTTP send-API mail backend using the Mailjet v3.1 message format
// ABOUTME: Authenticates with basic auth over the configured key/secret pair

package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/constructhub/hub/internal/config"
)

const defaultAPIURL = "https://api.mailjet.com/v3.1/send"

// APISender delivers mail through an HTTP send API.
type APISender struct {
	url       string
	apiKey    string
	apiSecret string
	fromEmail string
	fromName  string
	client    *http.Client
	logger    *slog.Logger
}

// NewAPISender creates a sender from mail configuration.
func NewAPISender(cfg config.MailConfig) *APISender {
	url := cfg.APIURL
	if url == "" {
		url = defaultAPIURL
	}
	return &APISender{
		url:       url,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    slog.Default().With("component", "mailer"),
	}
}

// apiParty is an address in the send API payload.
type apiParty struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

// apiMessage is one message in the send API payload.
type apiMessage struct {
	From     apiParty   `json:"From"`
	To       []apiParty `json:"To"`
	Subject  string     `json:"Subject"`
	TextPart string     `json:"TextPart,omitempty"`
	HTMLPart string     `json:"HTMLPart,omitempty"`
}

// Send posts the message to the send API and checks for a 2xx response.
func (s *APISender) Send(ctx context.Context, msg *Message) error {
	payload := struct {
		Messages []apiMessage `json:"Messages"`
	}{
		Messages: []apiMessage{{
			From:     apiParty{Email: s.fromEmail, Name: s.fromName},
			To:       []apiParty{{Email: msg.To, Name: msg.ToName}},
			Subject:  msg.Subject,
			TextPart: msg.TextBody,
			HTMLPart: msg.HTMLBody,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.apiKey, s.apiSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail API returned %d: %s", resp.StatusCode, detail)
	}

	s.logger.Info("mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
