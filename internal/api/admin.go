// ABOUTME: Admin auth and management handlers: login, logout, check-auth, users, activities
// ABOUTME: Credential failures answer with generic wording; viewing actions are logged

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/constructhub/hub/internal/authz"
	"github.com/constructhub/hub/internal/session"
	"github.com/constructhub/hub/internal/store"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiry, err := s.sessions.Login(r.Context(), body.Email, body.Password, clientAddr(r))
	if errors.Is(err, session.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	authz.SetAdminCookies(w, token, expiry)

	p, err := s.sessions.Validate(r.Context(), token)
	if err != nil {
		s.logger.Error("validating fresh session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "logged in",
		"user":    toPrincipalJSON(p),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(authz.CookieAdminSession); err == nil {
		if err := s.sessions.Logout(r.Context(), cookie.Value, clientAddr(r)); err != nil {
			s.logger.Error("logout failed", "error", err)
		}
	}

	authz.ClearAdminCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	ac := authz.FromContext(r.Context())
	if !ac.AdminVerified {
		authz.ClearAdminCookies(w)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"authenticated": false})
		return
	}

	// Re-set the cookie pair so the readable marker stays in step with the
	// session for its remaining lifetime.
	if cookie, err := r.Cookie(authz.CookieAdminSession); err == nil && ac.Principal.SessionExpiry != nil {
		authz.SetAdminCookies(w, cookie.Value, *ac.Principal.SessionExpiry)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          toPrincipalJSON(ac.Principal),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	principals, err := s.store.ListPrincipals(r.Context(), queryLimit(r))
	if err != nil {
		s.logger.Error("listing principals", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordActivity(r, store.ActionViewUsers, "")

	users := make([]principalJSON, 0, len(principals))
	for _, p := range principals {
		users = append(users, toPrincipalJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPrincipal(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrPrincipalNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("getting principal", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordActivity(r, store.ActionViewUser, p.IdentityKey)
	writeJSON(w, http.StatusOK, map[string]any{"user": toPrincipalJSON(p)})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ac := authz.FromContext(r.Context())
	if ac.Principal == nil || ac.Principal.IdentityKey != s.superAdminKey {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	p, err := s.store.GetPrincipal(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrPrincipalNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Error("getting principal", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// The super admin cannot be deleted, not even by itself.
	if p.IdentityKey == s.superAdminKey {
		writeError(w, http.StatusForbidden, "cannot delete the super admin")
		return
	}

	if err := s.store.DeletePrincipal(r.Context(), p.ID); err != nil {
		s.logger.Error("deleting principal", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordActivity(r, store.ActionDeleteUser, p.IdentityKey)
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListActivity(r.Context(), store.ActivityFilter{Limit: queryLimit(r)})
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.recordActivity(r, store.ActionViewActivities, "")
	writeJSON(w, http.StatusOK, map[string]any{"activities": entries})
}

// recordActivity appends an activity entry attributed to the current caller.
// Logging failures never fail the request.
func (s *Server) recordActivity(r *http.Request, action, detail string) {
	ac := authz.FromContext(r.Context())
	if ac.Principal == nil {
		return
	}

	if err := s.store.AppendActivity(r.Context(), &store.ActivityEntry{
		ActorKey:   ac.Principal.IdentityKey,
		ActorEmail: ac.Principal.Email,
		Action:     action,
		Detail:     detail,
		SourceAddr: clientAddr(r),
	}); err != nil {
		s.logger.Error("recording activity", "error", err, "action", action)
	}
}
