// ABOUTME: Identity provider webhook endpoint and health check
// ABOUTME: Lifecycle events sync principals; deliveries must carry a valid signature

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/constructhub/hub/internal/identity"
	"github.com/constructhub/hub/internal/store"
)

// maxWebhookBody bounds how much of a delivery we read.
const maxWebhookBody = 1 << 20

func (s *Server) handleIdentityWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhook == nil {
		writeError(w, http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body")
		return
	}

	err = s.webhook.Verify(
		r.Header.Get(identity.HeaderWebhookID),
		r.Header.Get(identity.HeaderWebhookTimestamp),
		r.Header.Get(identity.HeaderWebhookSignature),
		body,
		s.now(),
	)
	if err != nil {
		s.logger.Warn("rejecting webhook delivery", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := identity.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event")
		return
	}

	switch event.Type {
	case identity.EventUserCreated, identity.EventUserUpdated:
		user, err := event.User()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user payload")
			return
		}
		ident := user.Identity()
		err = s.store.UpsertPrincipal(r.Context(), &store.Principal{
			IdentityKey: ident.Key,
			Username:    ident.Username,
			Email:       ident.Email,
			FirstName:   ident.FirstName,
			LastName:    ident.LastName,
			PhotoURL:    ident.PhotoURL,
			Verified:    ident.EmailVerified,
		})
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			s.logger.Error("syncing principal from webhook", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

	case identity.EventUserDeleted:
		user, err := event.User()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user payload")
			return
		}
		if user.ID == s.superAdminKey {
			writeError(w, http.StatusForbidden, "cannot delete the super admin")
			return
		}
		err = s.store.DeletePrincipalByIdentityKey(r.Context(), user.ID)
		if err != nil && !errors.Is(err, store.ErrPrincipalNotFound) {
			s.logger.Error("deleting principal from webhook", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

	default:
		// Unknown event types are acknowledged so the provider stops retrying.
		s.logger.Info("ignoring webhook event", "type", event.Type)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
