// ABOUTME: Authorization resolver deciding each request's effective principal and role
// ABOUTME: Admin session cookie wins, then provider identity, then anonymous

package authz

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/constructhub/hub/internal/identity"
	"github.com/constructhub/hub/internal/session"
	"github.com/constructhub/hub/internal/store"
)

// Admin cookie names. The session cookie is HttpOnly; the marker cookie is
// readable by the frontend as a UI hint and proves nothing.
const (
	CookieAdminSession = "admin_session"
	CookieAdminMarker  = "admin_authenticated"
)

// Resolver determines the authorization state of incoming requests.
type Resolver struct {
	sessions *session.Manager
	provider identity.Provider
	store    store.Store
	logger   *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(sessions *session.Manager, provider identity.Provider, st store.Store) *Resolver {
	return &Resolver{
		sessions: sessions,
		provider: provider,
		store:    st,
		logger:   slog.Default().With("component", "authz"),
	}
}

// Resolve determines who is calling. An admin session cookie that validates
// wins outright. A stale admin cookie is cleared and the request falls
// through to provider identity, then to anonymous. A store failure during
// validation is returned as an error and must fail the request; it says
// nothing about the session, so the cookies are kept.
func (r *Resolver) Resolve(w http.ResponseWriter, req *http.Request) (*AuthContext, error) {
	if cookie, err := req.Cookie(CookieAdminSession); err == nil && cookie.Value != "" {
		p, err := r.sessions.Validate(req.Context(), cookie.Value)
		switch {
		case err == nil:
			return &AuthContext{
				Principal:     p,
				Role:          p.Role,
				AdminVerified: true,
				Source:        SourceAdminSession,
			}, nil
		case errors.Is(err, session.ErrUnauthenticated):
			ClearAdminCookies(w)
		default:
			return nil, fmt.Errorf("validating admin session: %w", err)
		}
	}

	ident, err := r.provider.CurrentCaller(req)
	if err != nil {
		if !errors.Is(err, identity.ErrNoIdentity) {
			r.logger.Warn("rejecting identity session", "error", err)
		}
		return &AuthContext{Source: SourceAnonymous}, nil
	}

	p, err := r.syncPrincipal(req, ident)
	if err != nil {
		r.logger.Error("syncing principal from identity", "error", err)
		return &AuthContext{Source: SourceAnonymous}, nil
	}

	return &AuthContext{
		Principal: p,
		Role:      p.Role,
		Source:    SourceIdentity,
	}, nil
}

// syncPrincipal upserts the caller's profile and re-reads the stored row, so
// the effective role is whatever the store says, not what the cookie claims.
func (r *Resolver) syncPrincipal(req *http.Request, ident *identity.Identity) (*store.Principal, error) {
	ctx := req.Context()

	err := r.store.UpsertPrincipal(ctx, &store.Principal{
		IdentityKey: ident.Key,
		Username:    ident.Username,
		Email:       ident.Email,
		FirstName:   ident.FirstName,
		LastName:    ident.LastName,
		PhotoURL:    ident.PhotoURL,
		Verified:    ident.EmailVerified,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("upserting principal: %w", err)
	}

	return r.store.GetPrincipalByIdentityKey(ctx, ident.Key)
}

// SetAdminCookies writes the admin session cookie pair after a successful
// login or check.
func SetAdminCookies(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieAdminSession,
		Value:    token,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CookieAdminMarker,
		Value:    "true",
		Path:     "/",
		Expires:  expiry,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAdminCookies expires both admin cookies.
func ClearAdminCookies(w http.ResponseWriter) {
	for _, name := range []string{CookieAdminSession, CookieAdminMarker} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == CookieAdminSession,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
