// ABOUTME: Activity log entity and store methods for tracking admin-attributable actions
// ABOUTME: Append-only; records who did what from where for compliance and debugging

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendActivity appends a new entry to the activity log.
// Generates ID and timestamp if not set.
func (s *SQLiteStore) AppendActivity(ctx context.Context, e *ActivityEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_log (id, actor_key, actor_email, action, detail, source_addr, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.ActorKey,
		e.ActorEmail,
		e.Action,
		e.Detail,
		e.SourceAddr,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting activity entry: %w", err)
	}

	s.logger.Debug("appended activity",
		"id", e.ID,
		"actor", e.ActorKey,
		"action", e.Action,
	)
	return nil
}

// normalizeActivityLimit applies default (100) and cap (1000) to the limit.
func normalizeActivityLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const activityQuery = `
	SELECT id, actor_key, actor_email, action, detail, source_addr, created_at
	FROM activity_log
	WHERE (? IS NULL OR actor_key = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR created_at >= ?)
	ORDER BY created_at DESC
	LIMIT ?
`

// ListActivity returns activity entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListActivity(ctx context.Context, f ActivityFilter) ([]ActivityEntry, error) {
	limit := normalizeActivityLimit(f.Limit)

	var sinceStr *string
	if f.Since != nil {
		str := f.Since.UTC().Format(time.RFC3339)
		sinceStr = &str
	}

	rows, err := s.db.QueryContext(ctx, activityQuery,
		f.ActorKey, f.ActorKey,
		f.Action, f.Action,
		sinceStr, sinceStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying activity log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var createdAtStr string

		if err := rows.Scan(&e.ID, &e.ActorKey, &e.ActorEmail, &e.Action, &e.Detail, &e.SourceAddr, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}

		e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity entries: %w", err)
	}

	if entries == nil {
		entries = []ActivityEntry{}
	}
	return entries, nil
}
