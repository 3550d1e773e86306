// ABOUTME: HTTP middleware attaching auth context and gating role-protected routes
// ABOUTME: RequireAdmin checks the stored role, never just cookie presence

package authz

import (
	"encoding/json"
	"net/http"
)

// Middleware resolves the caller and attaches the auth context to the
// request context. Resolution failures answer 500 without touching cookies.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ac, err := r.Resolve(w, req)
		if err != nil {
			r.logger.Error("resolving caller", "error", err)
			writeAuthError(w, http.StatusInternalServerError, "internal error")
			return
		}
		next.ServeHTTP(w, req.WithContext(WithAuth(req.Context(), ac)))
	})
}

// RequireAdmin rejects requests whose resolved role is not admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ac := FromContext(req.Context())
		if !ac.IsAdmin() {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, req)
	})
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ac := FromContext(req.Context())
		if ac.Anonymous() {
			writeAuthError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
