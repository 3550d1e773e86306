// ABOUTME: Escalation endpoints: request admin access and consume approval links
// ABOUTME: Verify answers with browser-friendly statuses since the link is clicked from email

package api

import (
	"errors"
	"net/http"

	"github.com/constructhub/hub/internal/authz"
	"github.com/constructhub/hub/internal/escalation"
	"github.com/constructhub/hub/internal/identity"
)

func (s *Server) handleEscalationRequest(w http.ResponseWriter, r *http.Request) {
	ac := authz.FromContext(r.Context())
	if ac.Anonymous() {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ident := &identity.Identity{
		Key:           ac.Principal.IdentityKey,
		Username:      ac.Principal.Username,
		Email:         ac.Principal.Email,
		FirstName:     ac.Principal.FirstName,
		LastName:      ac.Principal.LastName,
		PhotoURL:      ac.Principal.PhotoURL,
		EmailVerified: ac.Principal.Verified,
	}

	if err := s.workflow.Request(r.Context(), ident, clientAddr(r)); err != nil {
		if errors.Is(err, escalation.ErrUnauthenticated) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		s.logger.Error("escalation request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "request submitted"})
}

func (s *Server) handleEscalationVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	result, err := s.workflow.Approve(r.Context(), token, clientAddr(r))
	switch {
	case errors.Is(err, escalation.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown or superseded token")
	case errors.Is(err, escalation.ErrExpired):
		writeError(w, http.StatusGone, "token expired")
	case errors.Is(err, escalation.ErrAlreadyApproved):
		writeError(w, http.StatusConflict, "token already used")
	case err != nil:
		s.logger.Error("escalation approve failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		http.Redirect(w, r, result.RedirectPath, http.StatusSeeOther)
	}
}
