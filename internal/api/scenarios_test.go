// ABOUTME: Scenario tests walking the admin session, escalation, and webhook flows
// ABOUTME: Each scenario drives the full mux the way a browser would

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructhub/hub/internal/authz"
	"github.com/constructhub/hub/internal/store"
)

func TestScenario_AdminSessionLifecycle(t *testing.T) {
	h := setupAPI(t)

	// Wrong password answers with generic wording.
	rec := h.do(t, request{
		method: http.MethodPost,
		path:   "/api/admin/login",
		body:   map[string]string{"email": testAdminEmail, "password": "wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decodeBody(t, rec)["error"])

	cookies := h.login(t)

	// check-auth confirms the session and returns the admin user.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/check-auth", cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["authenticated"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "admin", user["role"])
	assert.Equal(t, testAdminEmail, user["email"])

	// Admin endpoints work with the session cookie.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/users", cookies: cookies})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Logout clears the session; check-auth fails afterwards.
	rec = h.do(t, request{method: http.MethodPost, path: "/api/admin/logout", cookies: cookies})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/check-auth", cookies: cookies})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["authenticated"])

	// Viewing users is logged.
	action := store.ActionViewUsers
	entries, err := h.st.ListActivity(t.Context(), store.ActivityFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScenario_EscalationFlow(t *testing.T) {
	h := setupAPI(t)

	// Anonymous callers cannot request escalation.
	rec := h.do(t, request{method: http.MethodPost, path: "/api/admin/request"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// An identified user requests escalation; the approval mail goes out.
	rec = h.do(t, request{method: http.MethodPost, path: "/api/admin/request", identity: "user_1"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	token := h.approvalToken(t)

	// Missing token is a bad request.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/verify"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The emailed link promotes the subject and redirects.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/verify?token=" + token})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/approved", rec.Header().Get("Location"))

	p, err := h.st.GetPrincipalByIdentityKey(t.Context(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, p.Role)

	// The promoted user now passes admin gates via provider identity.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/users", identity: "user_1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// The token is single-use.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/verify?token=" + token})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown tokens are not found.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/verify?token=deadbeef"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_StaleAdminCookieWithIdentity(t *testing.T) {
	h := setupAPI(t)

	// A stale admin cookie plus a valid ordinary identity resolves to an
	// ordinary user and clears the stale cookies.
	rec := h.do(t, request{
		method:   http.MethodGet,
		path:     "/api/admin/users",
		cookies:  []*http.Cookie{{Name: authz.CookieAdminSession, Value: "stale"}},
		identity: "user_1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	assert.True(t, cleared[authz.CookieAdminSession])
	assert.True(t, cleared[authz.CookieAdminMarker])
}

func TestUserManagement(t *testing.T) {
	h := setupAPI(t)
	cookies := h.login(t)

	// Seed an ordinary user by having it touch the API.
	rec := h.do(t, request{method: http.MethodPost, path: "/api/admin/request", identity: "user_1"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	p, err := h.st.GetPrincipalByIdentityKey(t.Context(), "user_1")
	require.NoError(t, err)

	// Fetch by ID.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/users/" + p.ID, cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/users/missing", cookies: cookies})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Ordinary admins (promoted, not super) cannot delete users.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/admin/verify?token=" + h.approvalToken(t)})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = h.do(t, request{method: http.MethodDelete, path: "/api/admin/users/" + p.ID, identity: "user_1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The super admin can.
	rec = h.do(t, request{method: http.MethodDelete, path: "/api/admin/users/" + p.ID, cookies: cookies})
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = h.st.GetPrincipalByIdentityKey(t.Context(), "user_1")
	assert.ErrorIs(t, err, store.ErrPrincipalNotFound)

	// The super admin itself is protected.
	admin, err := h.st.GetPrincipalByIdentityKey(t.Context(), "admin:"+testAdminEmail)
	require.NoError(t, err)
	rec = h.do(t, request{method: http.MethodDelete, path: "/api/admin/users/" + admin.ID, cookies: cookies})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProjects_OwnerAndAdminAccess(t *testing.T) {
	h := setupAPI(t)

	// Anonymous callers are rejected.
	rec := h.do(t, request{method: http.MethodPost, path: "/api/projects", body: map[string]string{"title": "x"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Owner creates a project.
	rec = h.do(t, request{
		method:   http.MethodPost,
		path:     "/api/projects",
		body:     map[string]string{"title": "Riverside Apartments", "location": "Portland, OR"},
		identity: "user_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	project := decodeBody(t, rec)["project"].(map[string]any)
	id := project["ID"].(string)

	// Missing title is rejected.
	rec = h.do(t, request{method: http.MethodPost, path: "/api/projects", body: map[string]string{}, identity: "user_1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Owner reads and updates.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/projects/" + id, identity: "user_1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, request{
		method:   http.MethodPut,
		path:     "/api/projects/" + id,
		body:     map[string]string{"status": store.ProjectStatusInProgress},
		identity: "user_1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user is forbidden.
	rec = h.do(t, request{method: http.MethodGet, path: "/api/projects/" + id, identity: "user_2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The admin session sees everything.
	cookies := h.login(t)
	rec = h.do(t, request{method: http.MethodGet, path: "/api/projects", cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code)
	projects := decodeBody(t, rec)["projects"].([]any)
	assert.Len(t, projects, 1)

	rec = h.do(t, request{method: http.MethodDelete, path: "/api/projects/" + id, cookies: cookies})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/projects/" + id, identity: "user_1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_EmailVerification(t *testing.T) {
	h := setupAPI(t)

	// Seed an unverified principal.
	require.NoError(t, h.st.UpsertPrincipal(t.Context(), &store.Principal{
		IdentityKey: "user_1",
		Username:    "builder1",
		Email:       "builder1@example.com",
	}))

	// Both fields are required.
	rec := h.do(t, request{
		method: http.MethodPost,
		path:   "/api/verification/send",
		body:   map[string]string{"email": "builder1@example.com"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Sending mails a six-digit code.
	rec = h.do(t, request{
		method: http.MethodPost,
		path:   "/api/verification/send",
		body:   map[string]string{"email": "builder1@example.com", "username": "builder1"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := h.verificationCode(t)

	// Unknown emails have no code.
	rec = h.do(t, request{
		method: http.MethodPost,
		path:   "/api/verification/verify",
		body:   map[string]string{"email": "nobody@example.com", "code": code},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A wrong code is rejected without consuming the right one.
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	rec = h.do(t, request{
		method: http.MethodPost,
		path:   "/api/verification/verify",
		body:   map[string]string{"email": "builder1@example.com", "code": wrong},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The mailed code verifies the email and flips the stored flag.
	rec = h.do(t, request{
		method: http.MethodPost,
		path:   "/api/verification/verify",
		body:   map[string]string{"email": "builder1@example.com", "code": code},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p, err := h.st.GetPrincipalByIdentityKey(t.Context(), "user_1")
	require.NoError(t, err)
	assert.True(t, p.Verified)

	// The code is single-use.
	rec = h.do(t, request{
		method: http.MethodPost,
		path:   "/api/verification/verify",
		body:   map[string]string{"email": "builder1@example.com", "code": code},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckAuth_RefreshesCookiePair(t *testing.T) {
	h := setupAPI(t)
	cookies := h.login(t)

	rec := h.do(t, request{method: http.MethodGet, path: "/api/admin/check-auth", cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code)

	// A successful check re-sets both cookies, so the readable marker stays
	// in step with the session.
	refreshed := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			refreshed[c.Name] = true
		}
	}
	assert.True(t, refreshed[authz.CookieAdminSession])
	assert.True(t, refreshed[authz.CookieAdminMarker])
}

func TestUpdateProject_EmptyFieldsKeepStoredValues(t *testing.T) {
	h := setupAPI(t)

	rec := h.do(t, request{
		method: http.MethodPost,
		path:   "/api/projects",
		body: map[string]string{
			"title":       "Riverside Apartments",
			"description": "Six-story residential build",
			"location":    "Portland, OR",
		},
		identity: "user_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["project"].(map[string]any)["ID"].(string)

	// Updating one field leaves the omitted ones untouched.
	rec = h.do(t, request{
		method:   http.MethodPut,
		path:     "/api/projects/" + id,
		body:     map[string]string{"title": "Riverside Apartments II"},
		identity: "user_1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	p, err := h.st.GetProject(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "Riverside Apartments II", p.Title)
	assert.Equal(t, "Six-story residential build", p.Description)
	assert.Equal(t, "Portland, OR", p.Location)
}

func TestWebhook_LifecycleSync(t *testing.T) {
	h := setupAPI(t)

	created := `{"type":"user.created","data":{"id":"user_9","username":"newbie","primary_email_address_id":"em_1","email_addresses":[{"id":"em_1","email_address":"newbie@example.com","verification":{"status":"verified"}}]}}`

	// Unsigned deliveries are rejected.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/identity", nil)
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Signed create syncs the principal.
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, h.signedWebhook(t, created))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p, err := h.st.GetPrincipalByIdentityKey(t.Context(), "user_9")
	require.NoError(t, err)
	assert.Equal(t, "newbie", p.Username)
	assert.True(t, p.Verified)

	// Signed delete removes it; deleting again is still a 200.
	deleted := `{"type":"user.deleted","data":{"id":"user_9"}}`
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, h.signedWebhook(t, deleted))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = h.st.GetPrincipalByIdentityKey(t.Context(), "user_9")
	assert.ErrorIs(t, err, store.ErrPrincipalNotFound)

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, h.signedWebhook(t, deleted))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	h := setupAPI(t)

	rec := h.do(t, request{method: http.MethodGet, path: "/api/health"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}
