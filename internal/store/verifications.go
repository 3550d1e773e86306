// ABOUTME: Verification code store methods keyed by email address
// ABOUTME: At most one code exists per email; a re-send supersedes the prior code

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertVerificationCode creates or replaces the verification code for an
// email. A second send before confirmation overwrites the previous code, so
// only the latest code resolves.
func (s *SQLiteStore) UpsertVerificationCode(ctx context.Context, v *VerificationCode) error {
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	query := `
		INSERT INTO verification_codes (email, code, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			code       = excluded.code,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		v.Email,
		v.Code,
		v.ExpiresAt.UTC().Format(time.RFC3339),
		v.CreatedAt.UTC().Format(time.RFC3339),
		v.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting verification code: %w", err)
	}

	s.logger.Info("upserted verification code", "email", v.Email, "expires_at", v.ExpiresAt)
	return nil
}

// GetVerificationCode retrieves the verification code for an email.
func (s *SQLiteStore) GetVerificationCode(ctx context.Context, email string) (*VerificationCode, error) {
	query := `
		SELECT email, code, expires_at, created_at, updated_at
		FROM verification_codes
		WHERE email = ?
	`

	var v VerificationCode
	var expiresAtStr, createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&v.Email,
		&v.Code,
		&expiresAtStr,
		&createdAtStr,
		&updatedAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying verification code: %w", err)
	}

	v.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	v.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	v.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &v, nil
}

// DeleteVerificationCode removes the verification code for an email. Deleting
// an email with no code is a no-op.
func (s *SQLiteStore) DeleteVerificationCode(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM verification_codes WHERE email = ?", email); err != nil {
		return fmt.Errorf("deleting verification code: %w", err)
	}
	return nil
}
