// ABOUTME: Principal store methods for identity sync, lookup, and admin session fields
// ABOUTME: Session token and expiry are always written together to keep the pair consistent

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const principalColumns = `id, identity_key, username, email, first_name, last_name, photo_url, role, verified, session_token, session_expiry, created_at, updated_at`

// UpsertPrincipal inserts a principal or updates its profile fields, keyed by
// identity key. Role and session fields of an existing row are preserved;
// profile fields (username, email, names, photo, verification flag) are
// refreshed from the incoming record. Generates ID and timestamps if not set.
func (s *SQLiteStore) UpsertPrincipal(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Role == "" {
		p.Role = RoleUser
	}
	// Usernames are unique; providers don't always issue one.
	if p.Username == "" {
		p.Username = p.IdentityKey
	}

	query := `
		INSERT INTO principals (id, identity_key, username, email, first_name, last_name, photo_url, role, verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity_key) DO UPDATE SET
			username   = excluded.username,
			email      = excluded.email,
			first_name = excluded.first_name,
			last_name  = excluded.last_name,
			photo_url  = excluded.photo_url,
			verified   = excluded.verified,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.IdentityKey,
		p.Username,
		p.Email,
		p.FirstName,
		p.LastName,
		p.PhotoURL,
		p.Role,
		p.Verified,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("upserting principal: %w", err)
	}

	s.logger.Debug("upserted principal", "identity_key", p.IdentityKey, "email", p.Email)
	return nil
}

// GetPrincipal retrieves a principal by internal ID.
func (s *SQLiteStore) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	return s.getPrincipalWhere(ctx, "id = ?", id)
}

// GetPrincipalByIdentityKey retrieves a principal by its external identity key.
func (s *SQLiteStore) GetPrincipalByIdentityKey(ctx context.Context, key string) (*Principal, error) {
	return s.getPrincipalWhere(ctx, "identity_key = ?", key)
}

// GetPrincipalByEmail retrieves a principal by email.
func (s *SQLiteStore) GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error) {
	return s.getPrincipalWhere(ctx, "email = ?", email)
}

// GetPrincipalBySession retrieves the admin principal owning a live session
// token: exact token match, role admin, expiry strictly in the future.
func (s *SQLiteStore) GetPrincipalBySession(ctx context.Context, token string, now time.Time) (*Principal, error) {
	return s.getPrincipalWhere(ctx, "session_token = ? AND role = 'admin' AND session_expiry > ?",
		token, now.UTC().Format(time.RFC3339))
}

// GetPrincipalByToken retrieves a principal by exact session token match,
// regardless of role or expiry. Used by logout, which must clear expired
// sessions too.
func (s *SQLiteStore) GetPrincipalByToken(ctx context.Context, token string) (*Principal, error) {
	return s.getPrincipalWhere(ctx, "session_token = ?", token)
}

// getPrincipalWhere runs a single-row principal query with the given predicate.
func (s *SQLiteStore) getPrincipalWhere(ctx context.Context, where string, args ...any) (*Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE ` + where

	row := s.db.QueryRowContext(ctx, query, args...)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying principal: %w", err)
	}
	return p, nil
}

// SetPrincipalSession writes a session token and expiry onto a principal in
// one statement, keeping the pair consistent.
func (s *SQLiteStore) SetPrincipalSession(ctx context.Context, identityKey, token string, expiry time.Time) error {
	query := `
		UPDATE principals
		SET session_token = ?, session_expiry = ?, updated_at = ?
		WHERE identity_key = ?
	`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, query, token, expiry.UTC().Format(time.RFC3339), now, identityKey)
	if err != nil {
		return fmt.Errorf("setting principal session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrincipalNotFound
	}

	s.logger.Debug("set principal session", "identity_key", identityKey, "expiry", expiry)
	return nil
}

// ClearPrincipalSession removes the session token and expiry from a
// principal. Clearing a principal with no session is a no-op.
func (s *SQLiteStore) ClearPrincipalSession(ctx context.Context, identityKey string) error {
	query := `
		UPDATE principals
		SET session_token = NULL, session_expiry = NULL, updated_at = ?
		WHERE identity_key = ?
	`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, query, now, identityKey); err != nil {
		return fmt.Errorf("clearing principal session: %w", err)
	}
	return nil
}

// ClearAllSessions removes session token and expiry from every principal that
// has one set, returning the number of principals cleared.
func (s *SQLiteStore) ClearAllSessions(ctx context.Context) (int64, error) {
	query := `
		UPDATE principals
		SET session_token = NULL, session_expiry = NULL, updated_at = ?
		WHERE session_token IS NOT NULL
	`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("clearing all sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	if count > 0 {
		s.logger.Info("cleared sessions", "count", count)
	}
	return count, nil
}

// SetPrincipalRole updates a principal's role. A principal demoted to user
// loses any live session in the same statement, so a non-admin row never
// carries a session token.
func (s *SQLiteStore) SetPrincipalRole(ctx context.Context, identityKey, role string) error {
	if role != RoleUser && role != RoleAdmin {
		return fmt.Errorf("invalid role %q", role)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	var query string
	if role == RoleAdmin {
		query = `UPDATE principals SET role = ?, updated_at = ? WHERE identity_key = ?`
	} else {
		query = `UPDATE principals SET role = ?, session_token = NULL, session_expiry = NULL, updated_at = ? WHERE identity_key = ?`
	}

	result, err := s.db.ExecContext(ctx, query, role, now, identityKey)
	if err != nil {
		return fmt.Errorf("setting principal role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrincipalNotFound
	}

	s.logger.Info("set principal role", "identity_key", identityKey, "role", role)
	return nil
}

// MarkPrincipalVerified sets the verified flag on the principal owning an
// email address.
func (s *SQLiteStore) MarkPrincipalVerified(ctx context.Context, email string) error {
	query := `UPDATE principals SET verified = 1, updated_at = ? WHERE email = ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, query, now, email)
	if err != nil {
		return fmt.Errorf("marking principal verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrincipalNotFound
	}

	s.logger.Info("marked principal verified", "email", email)
	return nil
}

// ListPrincipals returns principals ordered newest first.
func (s *SQLiteStore) ListPrincipals(ctx context.Context, limit int) ([]*Principal, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + principalColumns + ` FROM principals ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying principals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var principals []*Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning principal: %w", err)
		}
		principals = append(principals, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating principals: %w", err)
	}

	return principals, nil
}

// DeletePrincipal deletes a principal by internal ID.
func (s *SQLiteStore) DeletePrincipal(ctx context.Context, id string) error {
	return s.deletePrincipalWhere(ctx, "id = ?", id)
}

// DeletePrincipalByIdentityKey deletes a principal by external identity key.
func (s *SQLiteStore) DeletePrincipalByIdentityKey(ctx context.Context, key string) error {
	return s.deletePrincipalWhere(ctx, "identity_key = ?", key)
}

func (s *SQLiteStore) deletePrincipalWhere(ctx context.Context, where string, args ...any) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM principals WHERE "+where, args...)
	if err != nil {
		return fmt.Errorf("deleting principal: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPrincipalNotFound
	}

	s.logger.Info("deleted principal", "args", args)
	return nil
}

// scanPrincipal scans a row into a Principal.
func scanPrincipal(scanner interface{ Scan(dest ...any) error }) (*Principal, error) {
	var p Principal
	var firstName, lastName, photoURL, sessionToken, sessionExpiry sql.NullString
	var createdAtStr, updatedAtStr string

	if err := scanner.Scan(
		&p.ID,
		&p.IdentityKey,
		&p.Username,
		&p.Email,
		&firstName,
		&lastName,
		&photoURL,
		&p.Role,
		&p.Verified,
		&sessionToken,
		&sessionExpiry,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return nil, err
	}

	p.FirstName = firstName.String
	p.LastName = lastName.String
	p.PhotoURL = photoURL.String

	if sessionToken.Valid {
		p.SessionToken = &sessionToken.String
	}
	if sessionExpiry.Valid {
		expiry, err := time.Parse(time.RFC3339, sessionExpiry.String)
		if err != nil {
			return nil, fmt.Errorf("parsing session_expiry: %w", err)
		}
		p.SessionExpiry = &expiry
	}

	var err error
	p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &p, nil
}
