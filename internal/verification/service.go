// ABOUTME: Email ownership verification: issue a short-lived code, confirm it by email
// ABOUTME: Codes are six digits, single-use, and superseded by a re-send

package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/constructhub/hub/internal/mailer"
	"github.com/constructhub/hub/internal/store"
)

// Service errors
var (
	ErrNotFound = errors.New("no verification code for this email")
	ErrExpired  = errors.New("verification code expired")
	ErrMismatch = errors.New("verification code does not match")
)

// codeTTL is how long a verification code stays valid.
const codeTTL = 10 * time.Minute

// Service coordinates issuing and confirming email verification codes.
type Service struct {
	store   store.Store
	sender  mailer.Sender
	logger  *slog.Logger
	now     func() time.Time
	newCode func() (string, error)
}

// NewService creates a verification service.
func NewService(st store.Store, sender mailer.Sender) *Service {
	return &Service{
		store:   st,
		sender:  sender,
		logger:  slog.Default().With("component", "verification"),
		now:     time.Now,
		newCode: generateCode,
	}
}

// Send issues a fresh code for an email and mails it out. A repeat send
// supersedes the prior code. The send fails when the mail cannot be
// delivered, since the caller has no other way to learn the code.
func (s *Service) Send(ctx context.Context, email, username string) error {
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generating verification code: %w", err)
	}

	expiresAt := s.now().Add(codeTTL)
	if err := s.store.UpsertVerificationCode(ctx, &store.VerificationCode{
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
	}); err != nil {
		return fmt.Errorf("recording verification code: %w", err)
	}

	msg, err := mailer.VerificationCode(email, username, code, expiresAt)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending verification code: %w", err)
	}

	s.logger.Info("verification code sent", "email", email, "expires_at", expiresAt)
	return nil
}

// Confirm checks a submitted code against the stored one. On a match the
// owning principal is marked verified and the code is consumed. Expired
// codes are deleted on sight, so a second attempt reports not-found.
func (s *Service) Confirm(ctx context.Context, email, code string) error {
	rec, err := s.store.GetVerificationCode(ctx, email)
	if errors.Is(err, store.ErrVerificationNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up verification code: %w", err)
	}

	if !s.now().Before(rec.ExpiresAt) {
		if err := s.store.DeleteVerificationCode(ctx, email); err != nil {
			s.logger.Error("deleting expired verification code", "error", err)
		}
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return ErrMismatch
	}

	if err := s.store.DeleteVerificationCode(ctx, email); err != nil {
		s.logger.Error("deleting consumed verification code", "error", err)
	}

	// The principal may not exist yet when the email is verified before the
	// first identity sync; the provider's verified claim covers that case.
	if err := s.store.MarkPrincipalVerified(ctx, email); err != nil {
		if errors.Is(err, store.ErrPrincipalNotFound) {
			s.logger.Info("verified email has no principal yet", "email", email)
			return nil
		}
		return fmt.Errorf("marking principal verified: %w", err)
	}

	s.logger.Info("email verified", "email", email)
	return nil
}

// generateCode creates a six-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
