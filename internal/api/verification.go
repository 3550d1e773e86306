// ABOUTME: Email verification handlers: send a code, confirm it
// ABOUTME: Open endpoints; the code mailed to the address is the proof of ownership

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/constructhub/hub/internal/verification"
)

func (s *Server) handleVerificationSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Email == "" || body.Username == "" {
		writeError(w, http.StatusBadRequest, "email and username are required")
		return
	}

	if err := s.verification.Send(r.Context(), body.Email, body.Username); err != nil {
		s.logger.Error("sending verification code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

func (s *Server) handleVerificationVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Email == "" || body.Code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	switch err := s.verification.Confirm(r.Context(), body.Email, body.Code); {
	case err == nil:
	case errors.Is(err, verification.ErrNotFound):
		writeError(w, http.StatusNotFound, "no verification code found")
		return
	case errors.Is(err, verification.ErrExpired):
		writeError(w, http.StatusBadRequest, "verification code expired")
		return
	case errors.Is(err, verification.ErrMismatch):
		writeError(w, http.StatusBadRequest, "invalid verification code")
		return
	default:
		s.logger.Error("confirming verification code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}
