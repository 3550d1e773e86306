// ABOUTME: Auth context type and request-context plumbing
// ABOUTME: Carries the resolved principal, role, and how the caller authenticated

package authz

import (
	"context"

	"github.com/constructhub/hub/internal/store"
)

// How a caller was authenticated.
const (
	SourceAdminSession = "admin_session"
	SourceIdentity     = "identity"
	SourceAnonymous    = "anonymous"
)

// AuthContext is the resolved authorization state of one request. Role is
// always the stored role; AdminVerified is true only when it was proven by a
// live admin session, never by the mere presence of a cookie.
type AuthContext struct {
	Principal     *store.Principal
	Role          string
	AdminVerified bool
	Source        string
}

// IsAdmin reports whether the stored role is admin.
func (a *AuthContext) IsAdmin() bool {
	return a.Role == store.RoleAdmin
}

// Anonymous reports whether no principal was resolved.
func (a *AuthContext) Anonymous() bool {
	return a.Principal == nil
}

type contextKey struct{}

// WithAuth returns a context carrying the auth context.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext extracts the auth context, or an anonymous one if absent.
func FromContext(ctx context.Context) *AuthContext {
	if ac, ok := ctx.Value(contextKey{}).(*AuthContext); ok {
		return ac
	}
	return &AuthContext{Source: SourceAnonymous}
}
