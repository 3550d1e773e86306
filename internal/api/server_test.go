// ABOUTME: End-to-end handler tests over the real mux with a temp SQLite store
// ABOUTME: Exercises login, escalation, user management, projects, and webhooks

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/constructhub/hub/internal/authz"
	"github.com/constructhub/hub/internal/config"
	"github.com/constructhub/hub/internal/escalation"
	"github.com/constructhub/hub/internal/identity"
	"github.com/constructhub/hub/internal/mailer"
	"github.com/constructhub/hub/internal/session"
	"github.com/constructhub/hub/internal/store"
	"github.com/constructhub/hub/internal/verification"
)

const (
	testPassword   = "correct-horse-battery"
	testAdminEmail = "admin@example.com"
	webhookSecret  = "shared-secret"
)

// headerProvider resolves identity from a test-only request header, so each
// request in a scenario can pick its caller.
type headerProvider struct{}

func (headerProvider) CurrentCaller(r *http.Request) (*identity.Identity, error) {
	key := r.Header.Get("X-Test-Identity")
	if key == "" {
		return nil, identity.ErrNoIdentity
	}
	return &identity.Identity{
		Key:           key,
		Username:      "u-" + key,
		Email:         key + "@example.com",
		EmailVerified: true,
	}, nil
}

// captureSender records notification mail for link extraction.
type captureSender struct {
	sent []*mailer.Message
}

func (c *captureSender) Send(_ context.Context, msg *mailer.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

type apiHarness struct {
	handler  http.Handler
	st       *store.SQLiteStore
	sender   *captureSender
	verifier *identity.WebhookVerifier
}

func setupAPI(t *testing.T) *apiHarness {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	adminCfg := config.AdminConfig{
		Email:        testAdminEmail,
		PasswordHash: string(hash),
		Username:     "admin",
		SessionTTL:   time.Hour,
	}

	sessions := session.NewManager(st, adminCfg)
	sender := &captureSender{}
	workflow := escalation.NewWorkflow(st, sender, "https://hub.example.com", testAdminEmail)
	resolver := authz.NewResolver(sessions, headerProvider{}, st)

	verifier, err := identity.NewWebhookVerifier(webhookSecret)
	require.NoError(t, err)

	verifications := verification.NewService(st, sender)

	srv := NewServer(st, sessions, workflow, verifications, resolver, verifier, "admin:"+testAdminEmail)
	return &apiHarness{handler: srv.Handler(), st: st, sender: sender, verifier: verifier}
}

// request describes one call through the mux.
type request struct {
	method   string
	path     string
	body     any
	cookies  []*http.Cookie
	identity string
}

func (h *apiHarness) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	if req.identity != "" {
		r.Header.Set("X-Test-Identity", req.identity)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, r)
	return rec
}

// sessionCookies extracts the admin cookie pair from a login response.
func sessionCookies(t *testing.T, rec *httptest.ResponseRecorder) []*http.Cookie {
	t.Helper()
	var out []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == authz.CookieAdminSession || c.Name == authz.CookieAdminMarker {
			out = append(out, c)
		}
	}
	require.NotEmpty(t, out, "no admin cookies in response")
	return out
}

var tokenPattern = regexp.MustCompile(`token=([0-9a-f]+)`)

// approvalToken pulls the escalation token out of the last captured mail.
func (h *apiHarness) approvalToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, h.sender.sent, "no notification mail captured")
	m := tokenPattern.FindStringSubmatch(h.sender.sent[len(h.sender.sent)-1].TextBody)
	require.Len(t, m, 2, "no token in notification mail")
	return m[1]
}

var codePattern = regexp.MustCompile(`## (\d{6})`)

// verificationCode pulls the six-digit code out of the last captured mail.
func (h *apiHarness) verificationCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, h.sender.sent, "no verification mail captured")
	m := codePattern.FindStringSubmatch(h.sender.sent[len(h.sender.sent)-1].TextBody)
	require.Len(t, m, 2, "no code in verification mail")
	return m[1]
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// login performs an admin login and returns the session cookies.
func (h *apiHarness) login(t *testing.T) []*http.Cookie {
	t.Helper()
	rec := h.do(t, request{
		method: http.MethodPost,
		path:   "/api/admin/login",
		body:   map[string]string{"email": testAdminEmail, "password": testPassword},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookies(t, rec)
}

// signedWebhook builds a correctly signed webhook request.
func (h *apiHarness) signedWebhook(t *testing.T, payload string) *http.Request {
	t.Helper()
	ts := fmt.Sprintf("%d", time.Now().Unix())
	r := httptest.NewRequest(http.MethodPost, "/api/webhook/identity", bytes.NewReader([]byte(payload)))
	r.Header.Set(identity.HeaderWebhookID, "msg_test")
	r.Header.Set(identity.HeaderWebhookTimestamp, ts)
	r.Header.Set(identity.HeaderWebhookSignature, h.verifier.Sign("msg_test", ts, []byte(payload)))
	return r
}
