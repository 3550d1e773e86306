// ABOUTME: Tests for escalation request store methods
// ABOUTME: Covers upsert-supersede semantics and atomic single-use approval

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeEscalation(token string, expiresAt time.Time) *EscalationRequest {
	return &EscalationRequest{
		SubjectKey: "user_1",
		Email:      "builder1@example.com",
		Token:      token,
		ExpiresAt:  expiresAt,
	}
}

func TestUpsertEscalation_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	expiry := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-1", expiry)))

	got, err := s.GetEscalationByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", got.SubjectKey)
	assert.Equal(t, "builder1@example.com", got.Email)
	assert.False(t, got.Approved)
	assert.True(t, got.ExpiresAt.Equal(expiry))
}

func TestUpsertEscalation_SupersedesPriorToken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	expiry := time.Now().UTC().Add(time.Hour)

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-old", expiry)))
	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-new", expiry)))

	// Only the latest token resolves.
	_, err := s.GetEscalationByToken(ctx, "tok-old")
	assert.ErrorIs(t, err, ErrEscalationNotFound)

	got, err := s.GetEscalationByToken(ctx, "tok-new")
	require.NoError(t, err)
	assert.Equal(t, "user_1", got.SubjectKey)
}

func TestUpsertEscalation_ResetsApprovedFlag(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	expiry := now.Add(time.Hour)

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-1", expiry)))
	require.NoError(t, s.ApproveEscalation(ctx, "tok-1", now))

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-2", expiry)))

	got, err := s.GetEscalationByToken(ctx, "tok-2")
	require.NoError(t, err)
	assert.False(t, got.Approved)
}

func TestApproveEscalation_Success(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-1", now.Add(time.Hour))))
	require.NoError(t, s.ApproveEscalation(ctx, "tok-1", now))

	got, err := s.GetEscalationByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, got.Approved)
}

func TestApproveEscalation_AlreadyApproved(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-1", now.Add(time.Hour))))
	require.NoError(t, s.ApproveEscalation(ctx, "tok-1", now))

	err := s.ApproveEscalation(ctx, "tok-1", now)
	assert.ErrorIs(t, err, ErrEscalationApproved)
}

func TestApproveEscalation_Expired(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-1", now.Add(time.Hour))))

	err := s.ApproveEscalation(ctx, "tok-1", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrEscalationExpired)

	// Expired but unapproved row is still present until cleaned up.
	got, err := s.GetEscalationByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, got.Approved)
}

func TestApproveEscalation_NotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.ApproveEscalation(ctx, "no-such-token", time.Now().UTC())
	assert.ErrorIs(t, err, ErrEscalationNotFound)
}

func TestDeleteEscalationByToken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertEscalation(ctx, makeEscalation("tok-1", time.Now().UTC().Add(time.Hour))))
	require.NoError(t, s.DeleteEscalationByToken(ctx, "tok-1"))

	_, err := s.GetEscalationByToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrEscalationNotFound)

	// Deleting an absent token is a no-op.
	require.NoError(t, s.DeleteEscalationByToken(ctx, "tok-1"))
}
