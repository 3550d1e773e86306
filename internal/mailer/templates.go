// ABOUTME: Email templates written in markdown and rendered to HTML with goldmark
// ABOUTME: Builds the escalation approval notification and the verification code mail

package mailer

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

const escalationApprovalTemplate = `# Admin access request

**%s** (%s) has requested admin access to the hub.

To approve this request, open the link below. The link expires at %s and can
be used once.

[Approve admin access](%s)

If you did not expect this request, ignore this message. The request expires
on its own.
`

// EscalationApproval builds the notification mail for a pending escalation
// request, addressed to the operator who can approve it.
func EscalationApproval(to, username, email, approvalURL string, expiresAt time.Time) (*Message, error) {
	markdown := fmt.Sprintf(escalationApprovalTemplate,
		username,
		email,
		expiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
		approvalURL,
	)

	html, err := renderMarkdown(markdown)
	if err != nil {
		return nil, fmt.Errorf("rendering approval mail: %w", err)
	}

	return &Message{
		To:       to,
		Subject:  fmt.Sprintf("Admin access request from %s", username),
		TextBody: markdown,
		HTMLBody: html,
	}, nil
}

const verificationCodeTemplate = `# Verify your email

Hi **%s**,

Your verification code is:

## %s

The code expires at %s. If you did not request it, ignore this message.
`

// VerificationCode builds the mail carrying an email ownership code,
// addressed to the email being verified.
func VerificationCode(to, username, code string, expiresAt time.Time) (*Message, error) {
	markdown := fmt.Sprintf(verificationCodeTemplate,
		username,
		code,
		expiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
	)

	html, err := renderMarkdown(markdown)
	if err != nil {
		return nil, fmt.Errorf("rendering verification mail: %w", err)
	}

	return &Message{
		To:       to,
		ToName:   username,
		Subject:  "Your verification code",
		TextBody: markdown,
		HTMLBody: html,
	}, nil
}

// renderMarkdown converts a markdown body to an HTML fragment.
func renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
