// ABOUTME: Project CRUD handlers scoped to the owning principal
// ABOUTME: Admins see and manage every project; owners only their own

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/constructhub/hub/internal/authz"
	"github.com/constructhub/hub/internal/store"
)

// projectBody is the mutable part of a project accepted on create/update.
type projectBody struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	Status       string `json:"status"`
	FloorPlanURL string `json:"floorPlanUrl"`
}

func validProjectStatus(status string) bool {
	switch status {
	case "", store.ProjectStatusPlanning, store.ProjectStatusInProgress, store.ProjectStatusCompleted:
		return true
	}
	return false
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ac := authz.FromContext(r.Context())

	var body projectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if !validProjectStatus(body.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	p := &store.Project{
		OwnerKey:     ac.Principal.IdentityKey,
		Title:        body.Title,
		Description:  body.Description,
		Location:     body.Location,
		Status:       body.Status,
		FloorPlanURL: body.FloorPlanURL,
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		s.logger.Error("creating project", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"project": p})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ac := authz.FromContext(r.Context())

	// Admins see everything; owners see their own.
	ownerKey := ac.Principal.IdentityKey
	if ac.IsAdmin() {
		ownerKey = ""
	}

	projects, err := s.store.ListProjects(r.Context(), ownerKey, queryLimit(r))
	if err != nil {
		s.logger.Error("listing projects", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if projects == nil {
		projects = []*store.Project{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// loadProjectForCaller fetches a project and checks the caller may touch it.
// Writes the error response itself and returns nil when access is denied.
func (s *Server) loadProjectForCaller(w http.ResponseWriter, r *http.Request) *store.Project {
	p, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "project not found")
		return nil
	}
	if err != nil {
		s.logger.Error("getting project", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}

	ac := authz.FromContext(r.Context())
	if !ac.IsAdmin() && p.OwnerKey != ac.Principal.IdentityKey {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil
	}
	return p
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p := s.loadProjectForCaller(w, r)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

// handleUpdateProject applies a partial update: fields omitted or sent as
// empty strings keep their stored values. Clearing a field to empty is not
// supported through this endpoint.
func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	p := s.loadProjectForCaller(w, r)
	if p == nil {
		return
	}

	var body projectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validProjectStatus(body.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if body.Title != "" {
		p.Title = body.Title
	}
	if body.Description != "" {
		p.Description = body.Description
	}
	if body.Location != "" {
		p.Location = body.Location
	}
	if body.Status != "" {
		p.Status = body.Status
	}
	if body.FloorPlanURL != "" {
		p.FloorPlanURL = body.FloorPlanURL
	}

	if err := s.store.UpdateProject(r.Context(), p); err != nil {
		s.logger.Error("updating project", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p := s.loadProjectForCaller(w, r)
	if p == nil {
		return
	}

	if err := s.store.DeleteProject(r.Context(), p.ID); err != nil {
		s.logger.Error("deleting project", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
}
