// Package projects provides project management endpoints.
package projects

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ponto-labs/pontual/internal/api/middleware"
	"github.com/ponto-labs/pontual/internal/api/respond"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/storage"
)

// ProjectResponse is a project in API responses.
type ProjectResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	IsFinished     bool   `json:"is_finished"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type Handler struct {
	storage storage.Storage
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// Request types
type CreateRequest struct {
	Name string `json:"name"`
}

type UpdateRequest struct {
	Name string `json:"name"`
}

// List returns the organization's projects. Finished projects are included
// unless ?active=true.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respond.JSONError(w, respond.NewBadRequest("active must be true or false"))
			return
		}
		activeOnly = parsed
	}

	projects, err := h.storage.Projects().ListByOrganization(ctx, orgID, activeOnly)
	if err != nil {
		log.Printf("list projects error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	resp := make([]*ProjectResponse, len(projects))
	for i, p := range projects {
		resp[i] = projectToResponse(p)
	}
	respond.OK(w, resp)
}

// Create creates a new project in the organization.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if err := ValidateName(req.Name); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	project := models.NewProject(orgID, strings.TrimSpace(req.Name))
	project.ID = uuid.New().String()

	if err := h.storage.Projects().Create(ctx, project); err != nil {
		log.Printf("create project error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("project created: %s (%s) in organization %s", project.Name, project.ID, orgID)
	respond.Created(w, projectToResponse(project))
}

// Get returns a project by ID.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	respond.OK(w, projectToResponse(project))
}

// Update renames a project.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if err := ValidateName(req.Name); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	project.Name = strings.TrimSpace(req.Name)
	if err := h.storage.Projects().Update(r.Context(), project); err != nil {
		log.Printf("update project error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("project updated: %s (%s)", project.Name, project.ID)
	respond.OK(w, projectToResponse(project))
}

// Delete removes a project and all its time entries.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}

	if err := h.storage.Projects().Delete(r.Context(), project.ID); err != nil {
		log.Printf("delete project error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("project deleted: %s (%s)", project.Name, project.ID)
	respond.NoContent(w)
}

// Finish marks a project finished. Finished projects accept no new entries
// and drop out of summaries; existing entries are untouched.
func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	h.setFinished(w, r, true)
}

// Reopen clears the finished flag.
func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.setFinished(w, r, false)
}

func (h *Handler) setFinished(w http.ResponseWriter, r *http.Request, finished bool) {
	project, ok := h.loadProject(w, r)
	if !ok {
		return
	}
	if project.IsFinished == finished {
		respond.OK(w, projectToResponse(project))
		return
	}

	if err := h.storage.Projects().SetFinished(r.Context(), project.ID, finished); err != nil {
		log.Printf("set project finished error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	project.IsFinished = finished
	log.Printf("project %s (%s) finished=%v", project.Name, project.ID, finished)
	respond.OK(w, projectToResponse(project))
}

// loadProject fetches the {projectID} route project and verifies it belongs
// to the route's organization. Writes the error response on failure.
func (h *Handler) loadProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	id := chi.URLParam(r, "projectID")
	if id == "" {
		respond.JSONError(w, respond.NewBadRequest("project id required"))
		return nil, false
	}

	ctx := r.Context()
	project, err := h.storage.Projects().GetByID(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("get project error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return nil, false
	}
	if project == nil || project.OrganizationID != middleware.GetOrganizationID(ctx) {
		respond.JSONError(w, respond.NewNotFound("project not found"))
		return nil, false
	}
	return project, true
}

func projectToResponse(p *models.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		IsFinished:     p.IsFinished,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}
