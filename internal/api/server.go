// ABOUTME: HTTP server wiring routes to the session, escalation, and authz layers
// ABOUTME: JSON surfaces under /api with cookie-based admin auth

package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/constructhub/hub/internal/authz"
	"github.com/constructhub/hub/internal/escalation"
	"github.com/constructhub/hub/internal/identity"
	"github.com/constructhub/hub/internal/session"
	"github.com/constructhub/hub/internal/store"
	"github.com/constructhub/hub/internal/verification"
)

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	store         store.Store
	sessions      *session.Manager
	workflow      *escalation.Workflow
	verification  *verification.Service
	resolver      *authz.Resolver
	webhook       *identity.WebhookVerifier
	superAdminKey string
	logger        *slog.Logger
	now           func() time.Time
}

// NewServer creates the API server. superAdminKey is the identity key of the
// config-provisioned super admin, which only it may exercise destructive
// user operations against others and which can never be deleted.
func NewServer(st store.Store, sessions *session.Manager, workflow *escalation.Workflow, verifications *verification.Service, resolver *authz.Resolver, webhook *identity.WebhookVerifier, superAdminKey string) *Server {
	return &Server{
		store:         st,
		sessions:      sessions,
		workflow:      workflow,
		verification:  verifications,
		resolver:      resolver,
		webhook:       webhook,
		superAdminKey: superAdminKey,
		logger:        slog.Default().With("component", "api"),
		now:           time.Now,
	}
}

// Handler builds the route table and wraps it with auth resolution.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/admin/login", s.handleLogin)
	mux.HandleFunc("POST /api/admin/logout", s.handleLogout)
	mux.HandleFunc("GET /api/admin/check-auth", s.handleCheckAuth)

	mux.HandleFunc("POST /api/admin/request", s.handleEscalationRequest)
	mux.HandleFunc("GET /api/admin/verify", s.handleEscalationVerify)

	mux.Handle("GET /api/admin/users", authz.RequireAdmin(http.HandlerFunc(s.handleListUsers)))
	mux.Handle("GET /api/admin/users/{id}", authz.RequireAdmin(http.HandlerFunc(s.handleGetUser)))
	mux.Handle("DELETE /api/admin/users/{id}", authz.RequireAdmin(http.HandlerFunc(s.handleDeleteUser)))
	mux.Handle("GET /api/admin/activities", authz.RequireAdmin(http.HandlerFunc(s.handleListActivities)))

	mux.Handle("POST /api/projects", authz.RequireIdentity(http.HandlerFunc(s.handleCreateProject)))
	mux.Handle("GET /api/projects", authz.RequireIdentity(http.HandlerFunc(s.handleListProjects)))
	mux.Handle("GET /api/projects/{id}", authz.RequireIdentity(http.HandlerFunc(s.handleGetProject)))
	mux.Handle("PUT /api/projects/{id}", authz.RequireIdentity(http.HandlerFunc(s.handleUpdateProject)))
	mux.Handle("DELETE /api/projects/{id}", authz.RequireIdentity(http.HandlerFunc(s.handleDeleteProject)))

	mux.HandleFunc("POST /api/verification/send", s.handleVerificationSend)
	mux.HandleFunc("POST /api/verification/verify", s.handleVerificationVerify)

	mux.HandleFunc("POST /api/webhook/identity", s.handleIdentityWebhook)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	return s.resolver.Middleware(mux)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// clientAddr extracts the caller address, preferring the proxy header.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// queryLimit parses an optional ?limit= parameter.
func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// principalJSON is the wire shape of a principal. Session fields never leave
// the server.
type principalJSON struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPrincipalJSON(p *store.Principal) principalJSON {
	return principalJSON{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		PhotoURL:  p.PhotoURL,
		Role:      p.Role,
		Verified:  p.Verified,
		CreatedAt: p.CreatedAt,
	}
}
