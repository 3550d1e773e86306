// ABOUTME: Escalation request store methods with upsert and atomic single-use approval
// ABOUTME: At most one row exists per subject; a new request supersedes the prior token

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertEscalation creates or replaces the escalation request for a subject.
// A second request before approval overwrites the previous token and resets
// the approved flag, so only the latest token resolves.
func (s *SQLiteStore) UpsertEscalation(ctx context.Context, e *EscalationRequest) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `
		INSERT INTO escalation_requests (subject_key, email, token, approved, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT(subject_key) DO UPDATE SET
			email      = excluded.email,
			token      = excluded.token,
			approved   = 0,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		e.SubjectKey,
		e.Email,
		e.Token,
		e.ExpiresAt.UTC().Format(time.RFC3339),
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting escalation request: %w", err)
	}

	s.logger.Info("upserted escalation request", "subject_key", e.SubjectKey, "expires_at", e.ExpiresAt)
	return nil
}

// GetEscalationByToken retrieves an escalation request by exact token match.
func (s *SQLiteStore) GetEscalationByToken(ctx context.Context, token string) (*EscalationRequest, error) {
	query := `
		SELECT subject_key, email, token, approved, expires_at, created_at, updated_at
		FROM escalation_requests
		WHERE token = ?
	`

	var e EscalationRequest
	var expiresAtStr, createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&e.SubjectKey,
		&e.Email,
		&e.Token,
		&e.Approved,
		&expiresAtStr,
		&createdAtStr,
		&updatedAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEscalationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying escalation request: %w", err)
	}

	e.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &e, nil
}

// ApproveEscalation atomically marks a request as approved. The conditional
// update only succeeds for an existing, unapproved, unexpired token, so two
// requests racing to consume the same token resolve to one winner.
// Returns ErrEscalationApproved if already approved, ErrEscalationExpired if
// expired, or ErrEscalationNotFound if the token doesn't exist.
func (s *SQLiteStore) ApproveEscalation(ctx context.Context, token string, now time.Time) error {
	nowStr := now.UTC().Format(time.RFC3339)

	query := `
		UPDATE escalation_requests
		SET approved = 1, updated_at = ?
		WHERE token = ?
		  AND approved = 0
		  AND expires_at > ?
	`

	result, err := s.db.ExecContext(ctx, query, nowStr, token, nowStr)
	if err != nil {
		return fmt.Errorf("approving escalation request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Info("escalation request approved", "token_prefix", tokenPrefix(token))
		return nil
	}

	// rowsAffected == 0 - determine why by re-reading the row
	e, err := s.GetEscalationByToken(ctx, token)
	if errors.Is(err, ErrEscalationNotFound) {
		return ErrEscalationNotFound
	}
	if err != nil {
		return err
	}
	if e.Approved {
		return ErrEscalationApproved
	}
	if !now.Before(e.ExpiresAt) {
		return ErrEscalationExpired
	}

	// Shouldn't reach here, but just in case
	return ErrEscalationNotFound
}

// DeleteEscalationByToken removes an escalation request. Deleting a token
// that no longer resolves is a no-op.
func (s *SQLiteStore) DeleteEscalationByToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM escalation_requests WHERE token = ?", token); err != nil {
		return fmt.Errorf("deleting escalation request: %w", err)
	}
	return nil
}

// tokenPrefix returns the first 8 characters of a token for log lines.
// Full bearer tokens never appear in logs.
func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
