// ABOUTME: Tests for webhook signature verification and event parsing
// ABOUTME: Covers signature matching, timestamp tolerance, and payload mapping

package identity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookVerifier_RoundTrip(t *testing.T) {
	v, err := NewWebhookVerifier("shared-secret")
	require.NoError(t, err)

	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	now := time.Now()
	ts := fmt.Sprintf("%d", now.Unix())
	sig := v.Sign("msg_1", ts, body)

	assert.NoError(t, v.Verify("msg_1", ts, sig, body, now))
}

func TestWebhookVerifier_TamperedBody(t *testing.T) {
	v, err := NewWebhookVerifier("shared-secret")
	require.NoError(t, err)

	now := time.Now()
	ts := fmt.Sprintf("%d", now.Unix())
	sig := v.Sign("msg_1", ts, []byte("original"))

	err = v.Verify("msg_1", ts, sig, []byte("tampered"), now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestWebhookVerifier_MultipleSignatures(t *testing.T) {
	v, err := NewWebhookVerifier("shared-secret")
	require.NoError(t, err)

	body := []byte("payload")
	now := time.Now()
	ts := fmt.Sprintf("%d", now.Unix())
	good := v.Sign("msg_1", ts, body)

	// Any matching signature in the space-separated list passes.
	assert.NoError(t, v.Verify("msg_1", ts, "v1,Zm9yZ2VkCg== "+good, body, now))
}

func TestWebhookVerifier_StaleTimestamp(t *testing.T) {
	v, err := NewWebhookVerifier("shared-secret")
	require.NoError(t, err)

	body := []byte("payload")
	now := time.Now()
	old := now.Add(-10 * time.Minute)
	ts := fmt.Sprintf("%d", old.Unix())
	sig := v.Sign("msg_1", ts, body)

	err = v.Verify("msg_1", ts, sig, body, now)
	assert.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestWebhookVerifier_MissingHeaders(t *testing.T) {
	v, err := NewWebhookVerifier("shared-secret")
	require.NoError(t, err)

	err = v.Verify("", "", "", []byte("payload"), time.Now())
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestNewWebhookVerifier_PrefixedSecret(t *testing.T) {
	// "whsec_" secrets carry a base64 key; both spellings verify the same.
	prefixed, err := NewWebhookVerifier("whsec_c2hhcmVkLXNlY3JldA==")
	require.NoError(t, err)
	plain, err := NewWebhookVerifier("shared-secret")
	require.NoError(t, err)

	body := []byte("payload")
	now := time.Now()
	ts := fmt.Sprintf("%d", now.Unix())
	sig := plain.Sign("msg_1", ts, body)

	assert.NoError(t, prefixed.Verify("msg_1", ts, sig, body, now))
}

func TestParseEvent_UserPayload(t *testing.T) {
	body := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_1",
			"username": "builder",
			"first_name": "Bo",
			"last_name": "Builder",
			"image_url": "https://img.example.com/u1.png",
			"primary_email_address_id": "em_2",
			"email_addresses": [
				{"id": "em_1", "email_address": "old@example.com", "verification": {"status": "unverified"}},
				{"id": "em_2", "email_address": "bo@example.com", "verification": {"status": "verified"}}
			]
		}
	}`)

	e, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventUserCreated, e.Type)

	u, err := e.User()
	require.NoError(t, err)

	id := u.Identity()
	assert.Equal(t, "user_1", id.Key)
	assert.Equal(t, "builder", id.Username)
	assert.Equal(t, "bo@example.com", id.Email)
	assert.True(t, id.EmailVerified)
}

func TestParseEvent_FallbackEmail(t *testing.T) {
	body := []byte(`{
		"type": "user.updated",
		"data": {
			"id": "user_1",
			"email_addresses": [
				{"id": "em_1", "email_address": "only@example.com", "verification": {"status": "unverified"}}
			]
		}
	}`)

	e, err := ParseEvent(body)
	require.NoError(t, err)

	u, err := e.User()
	require.NoError(t, err)

	id := u.Identity()
	assert.Equal(t, "only@example.com", id.Email)
	assert.False(t, id.EmailVerified)
}

func TestParseEvent_MissingType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"data":{}}`))
	assert.Error(t, err)
}
