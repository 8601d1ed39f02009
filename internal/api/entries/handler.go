// Package entries provides time entry and live timer endpoints.
package entries

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ponto-labs/pontual/internal/api/middleware"
	"github.com/ponto-labs/pontual/internal/api/respond"
	"github.com/ponto-labs/pontual/internal/metrics"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/permissions"
	"github.com/ponto-labs/pontual/internal/storage"
	"github.com/ponto-labs/pontual/internal/timer"
	"github.com/ponto-labs/pontual/internal/timeutil"
)

// EntryResponse is a time entry in API responses.
type EntryResponse struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	ProjectID         string `json:"project_id"`
	ProjectName       string `json:"project_name,omitempty"`
	OrganizationID    string `json:"organization_id,omitempty"`
	OrganizationName  string `json:"organization_name,omitempty"`
	StartedAt         string `json:"started_at"`
	EndedAt           string `json:"ended_at,omitempty"`
	Running           bool   `json:"running"`
	DurationMinutes   int    `json:"duration_minutes"`
	DurationFormatted string `json:"duration_formatted"`
}

type Handler struct {
	storage storage.Storage
	timers  *timer.Controller
}

func NewHandler(store storage.Storage, timers *timer.Controller) *Handler {
	return &Handler{storage: store, timers: timers}
}

// Request types

// CreateRequest is a manual entry. Instants carry the client's zone offset;
// storage keeps the wall clock the user saw, shifted to UTC fields.
type CreateRequest struct {
	ProjectID string `json:"project_id"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at"`
}

type UpdateRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	EndedAt   string `json:"ended_at,omitempty"`
}

type StartTimerRequest struct {
	ProjectID string `json:"project_id"`
}

// StartTimer starts the caller's live timer.
func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	var req StartTimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if req.ProjectID == "" {
		respond.JSONError(w, respond.NewValidationError("project_id is required"))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if ok := h.requireProjectMembership(w, r, req.ProjectID); !ok {
		return
	}

	entry, err := h.timers.Start(ctx, userID, req.ProjectID)
	if err != nil {
		switch {
		case errors.Is(err, timer.ErrProjectNotFound):
			respond.JSONError(w, respond.NewNotFound("project not found"))
		case errors.Is(err, timer.ErrProjectFinished):
			respond.JSONError(w, respond.NewConflict("project is finished"))
		case errors.Is(err, timer.ErrAlreadyRunning):
			metrics.TimerStartConflicts.Inc()
			respond.JSONError(w, respond.NewConflict("a timer is already running"))
		default:
			log.Printf("start timer error: %v", err)
			respond.JSONError(w, respond.ErrInternalServer)
		}
		return
	}

	log.Printf("timer started: user %s project %s", userID, req.ProjectID)
	metrics.TimersStartedTotal.Inc()
	metrics.EntriesCreatedTotal.WithLabelValues("timer").Inc()
	respond.Created(w, entryToResponse(entry))
}

// StopTimer stops the caller's live timer.
func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	entry, err := h.timers.Stop(ctx, userID)
	if err != nil {
		if errors.Is(err, timer.ErrNotRunning) {
			respond.JSONError(w, respond.NewNotFound("no timer is running"))
			return
		}
		log.Printf("stop timer error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("timer stopped: user %s entry %s", userID, entry.ID)
	metrics.TimersStoppedTotal.Inc()
	respond.OK(w, entryToResponse(entry))
}

// ActiveTimer returns the caller's running timer, or null when idle.
func (h *Handler) ActiveTimer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	entry, err := h.timers.Active(ctx, userID)
	if err != nil {
		log.Printf("active timer error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if entry == nil {
		respond.OK(w, nil)
		return
	}
	respond.OK(w, entryToResponse(entry))
}

// Create records a manual closed entry.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if req.ProjectID == "" {
		respond.JSONError(w, respond.NewValidationError("project_id is required"))
		return
	}

	startedAt, err := parseClientTime(req.StartedAt)
	if err != nil {
		respond.JSONError(w, respond.NewValidationError("started_at must be an RFC 3339 timestamp"))
		return
	}
	endedAt, err := parseClientTime(req.EndedAt)
	if err != nil {
		respond.JSONError(w, respond.NewValidationError("ended_at must be an RFC 3339 timestamp"))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	project, ok := h.loadAccessibleProject(w, r, req.ProjectID)
	if !ok {
		return
	}
	if project.IsFinished {
		respond.JSONError(w, respond.NewConflict("project is finished"))
		return
	}

	entry := models.NewTimeEntry(userID, req.ProjectID, startedAt, endedAt)
	entry.ID = uuid.New().String()
	if err := entry.Validate(); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	if err := h.storage.Entries().Create(ctx, entry); err != nil {
		log.Printf("create entry error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("manual entry created: user %s project %s (%s)", userID, req.ProjectID, entry.ID)
	metrics.EntriesCreatedTotal.WithLabelValues("manual").Inc()
	respond.Created(w, entryToResponse(entry))
}

// ListMine returns the caller's entries across all organizations, optionally
// bounded by ?from and ?to.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := models.EntryFilter{UserID: middleware.GetUserID(ctx)}
	if ok := applyRangeParams(w, r, &filter); !ok {
		return
	}

	entries, err := h.storage.Entries().List(ctx, filter)
	if err != nil {
		log.Printf("list entries error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	respond.OK(w, detailsToResponses(entries))
}

// ListOrganization returns entries inside the route's organization. Members
// always see their own; ?user_id=<other> and ?all=true require the view-all
// capability.
func (h *Handler) ListOrganization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	filter := models.EntryFilter{OrganizationID: middleware.GetOrganizationID(ctx)}

	q := r.URL.Query()
	switch {
	case q.Get("all") == "true":
		if !middleware.HasCapability(ctx, permissions.CapViewAllEntries) {
			respond.JSONError(w, respond.ErrForbidden)
			return
		}
	case q.Get("user_id") != "" && q.Get("user_id") != userID:
		if !middleware.HasCapability(ctx, permissions.CapViewAllEntries) {
			respond.JSONError(w, respond.ErrForbidden)
			return
		}
		filter.UserID = q.Get("user_id")
	default:
		filter.UserID = userID
	}
	if projectID := q.Get("project_id"); projectID != "" {
		filter.ProjectID = projectID
	}
	if ok := applyRangeParams(w, r, &filter); !ok {
		return
	}

	entries, err := h.storage.Entries().List(ctx, filter)
	if err != nil {
		log.Printf("list organization entries error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	respond.OK(w, detailsToResponses(entries))
}

// Update edits one of the caller's closed entries.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	entry, ok := h.loadOwnEntry(w, r)
	if !ok {
		return
	}
	if entry.IsRunning() {
		respond.JSONError(w, respond.NewConflict("running timers are stopped, not edited"))
		return
	}

	ctx := r.Context()

	if req.ProjectID != "" && req.ProjectID != entry.ProjectID {
		project, ok := h.loadAccessibleProject(w, r, req.ProjectID)
		if !ok {
			return
		}
		if project.IsFinished {
			respond.JSONError(w, respond.NewConflict("project is finished"))
			return
		}
		entry.ProjectID = req.ProjectID
	}
	if req.StartedAt != "" {
		startedAt, err := parseClientTime(req.StartedAt)
		if err != nil {
			respond.JSONError(w, respond.NewValidationError("started_at must be an RFC 3339 timestamp"))
			return
		}
		entry.StartedAt = startedAt
	}
	if req.EndedAt != "" {
		endedAt, err := parseClientTime(req.EndedAt)
		if err != nil {
			respond.JSONError(w, respond.NewValidationError("ended_at must be an RFC 3339 timestamp"))
			return
		}
		entry.EndedAt = &endedAt
	}
	if err := entry.Validate(); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	if err := h.storage.Entries().Update(ctx, entry); err != nil {
		log.Printf("update entry error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("entry updated: %s", entry.ID)
	respond.OK(w, entryToResponse(entry))
}

// Delete removes one of the caller's entries.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.loadOwnEntry(w, r)
	if !ok {
		return
	}

	if err := h.storage.Entries().Delete(r.Context(), entry.ID); err != nil {
		log.Printf("delete entry error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("entry deleted: %s", entry.ID)
	metrics.EntriesDeletedTotal.Inc()
	respond.NoContent(w)
}

// loadOwnEntry fetches the {id} route entry and verifies the caller owns it.
// Foreign entries read as not found so ownership is not leaked.
func (h *Handler) loadOwnEntry(w http.ResponseWriter, r *http.Request) (*models.TimeEntry, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respond.JSONError(w, respond.NewBadRequest("entry id required"))
		return nil, false
	}

	ctx := r.Context()
	entry, err := h.storage.Entries().GetByID(ctx, id)
	if err != nil {
		log.Printf("get entry error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return nil, false
	}
	if entry == nil || entry.UserID != middleware.GetUserID(ctx) {
		respond.JSONError(w, respond.NewNotFound("entry not found"))
		return nil, false
	}
	return entry, true
}

// loadAccessibleProject fetches a project and verifies the caller belongs to
// its organization.
func (h *Handler) loadAccessibleProject(w http.ResponseWriter, r *http.Request, projectID string) (*models.Project, bool) {
	ctx := r.Context()
	project, err := h.storage.Projects().GetByID(ctx, projectID)
	if err != nil {
		log.Printf("get project error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return nil, false
	}
	if project == nil {
		respond.JSONError(w, respond.NewNotFound("project not found"))
		return nil, false
	}

	member, err := h.storage.Organizations().GetMember(ctx, project.OrganizationID, middleware.GetUserID(ctx))
	if err != nil {
		log.Printf("membership lookup error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return nil, false
	}
	if member == nil {
		respond.JSONError(w, respond.NewNotFound("project not found"))
		return nil, false
	}
	return project, true
}

// requireProjectMembership is loadAccessibleProject without returning the
// project.
func (h *Handler) requireProjectMembership(w http.ResponseWriter, r *http.Request, projectID string) bool {
	_, ok := h.loadAccessibleProject(w, r, projectID)
	return ok
}

// parseClientTime parses an RFC 3339 instant and shifts it to the wall clock
// the client saw.
func parseClientTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return timeutil.LocalToUTCPreservingClock(t), nil
}

// applyRangeParams fills From/To from ?from and ?to (RFC 3339). Returns
// false after writing an error response.
func applyRangeParams(w http.ResponseWriter, r *http.Request, filter *models.EntryFilter) bool {
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := parseClientTime(v)
		if err != nil {
			respond.JSONError(w, respond.NewValidationError("from must be an RFC 3339 timestamp"))
			return false
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseClientTime(v)
		if err != nil {
			respond.JSONError(w, respond.NewValidationError("to must be an RFC 3339 timestamp"))
			return false
		}
		filter.To = t
	}
	return true
}

func entryToResponse(e *models.TimeEntry) *EntryResponse {
	resp := &EntryResponse{
		ID:        e.ID,
		UserID:    e.UserID,
		ProjectID: e.ProjectID,
		StartedAt: e.StartedAt.Format(time.RFC3339),
		Running:   e.IsRunning(),
	}
	if e.EndedAt != nil {
		resp.EndedAt = e.EndedAt.Format(time.RFC3339)
		resp.DurationMinutes = timeutil.DurationMinutes(e.StartedAt, *e.EndedAt)
	}
	resp.DurationFormatted = timeutil.FormatMinutes(resp.DurationMinutes)
	return resp
}

func detailsToResponses(entries []models.TimeEntryDetail) []*EntryResponse {
	resp := make([]*EntryResponse, len(entries))
	for i := range entries {
		e := &entries[i]
		resp[i] = entryToResponse(&e.TimeEntry)
		resp[i].ProjectName = e.ProjectName
		resp[i].OrganizationID = e.OrganizationID
		resp[i].OrganizationName = e.OrganizationName
	}
	return resp
}
