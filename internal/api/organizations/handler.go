// Package organizations provides organization and membership endpoints.
package organizations

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ponto-labs/pontual/internal/api/middleware"
	"github.com/ponto-labs/pontual/internal/api/respond"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/permissions"
	"github.com/ponto-labs/pontual/internal/storage"
)

// Response types
type OrganizationResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CreatedBy    string   `json:"created_by"`
	Role         string   `json:"role,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

type MemberResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
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

type AddMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type UpdateMemberRequest struct {
	Role string `json:"role"`
}

// List returns the caller's organizations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	orgs, err := h.storage.Organizations().ListForUser(ctx, userID)
	if err != nil {
		log.Printf("list organizations error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	resp := make([]*OrganizationResponse, len(orgs))
	for i, org := range orgs {
		resp[i] = organizationToResponse(org)
	}
	respond.OK(w, resp)
}

// Create creates an organization with the caller as its admin.
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
	userID := middleware.GetUserID(ctx)

	org := models.NewOrganization(strings.TrimSpace(req.Name), userID)
	org.ID = uuid.New().String()

	if err := h.storage.Organizations().Create(ctx, org); err != nil {
		log.Printf("create organization error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("organization created: %s (%s) by %s", org.Name, org.ID, userID)
	resp := organizationToResponse(org)
	resp.Role = string(models.RoleAdmin)
	resp.Capabilities = capabilityNames(models.RoleAdmin)
	respond.Created(w, resp)
}

// Get returns the route's organization.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	org, err := h.storage.Organizations().GetByID(ctx, orgID)
	if err != nil {
		log.Printf("get organization error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if org == nil {
		respond.JSONError(w, respond.NewNotFound("organization not found"))
		return
	}

	resp := organizationToResponse(org)
	if role, ok := middleware.GetOrganizationRole(ctx); ok {
		resp.Role = string(role)
		resp.Capabilities = capabilityNames(role)
	}
	respond.OK(w, resp)
}

// Update renames the organization.
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

	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	org, err := h.storage.Organizations().GetByID(ctx, orgID)
	if err != nil {
		log.Printf("update organization error: get: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if org == nil {
		respond.JSONError(w, respond.NewNotFound("organization not found"))
		return
	}

	org.Name = strings.TrimSpace(req.Name)
	if err := h.storage.Organizations().Update(ctx, org); err != nil {
		log.Printf("update organization error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("organization updated: %s (%s)", org.Name, org.ID)
	respond.OK(w, organizationToResponse(org))
}

// Delete removes the organization with its projects and entries.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	if err := h.storage.Organizations().Delete(ctx, orgID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.JSONError(w, respond.NewNotFound("organization not found"))
			return
		}
		log.Printf("delete organization error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("organization deleted: %s", orgID)
	respond.NoContent(w)
}

// ListMembers returns the organization's members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	members, err := h.storage.Organizations().ListMembers(ctx, orgID)
	if err != nil {
		log.Printf("list members error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	resp := make([]*MemberResponse, len(members))
	for i, m := range members {
		resp[i] = &MemberResponse{
			UserID:   m.UserID,
			Email:    m.Email,
			FullName: m.FullName,
			Role:     string(m.Role),
			JoinedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}
	respond.OK(w, resp)
}

// AddMember invites an existing account into the organization by email.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		respond.JSONError(w, respond.NewValidationError("email is required"))
		return
	}
	role := models.RoleUser
	if req.Role != "" {
		if !models.ValidRole(req.Role) {
			respond.JSONError(w, respond.NewValidationError("role must be admin, manager, or user"))
			return
		}
		role = models.Role(req.Role)
	}

	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	user, err := h.storage.Users().GetByEmail(ctx, email)
	if err != nil {
		log.Printf("add member error: get user: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if user == nil {
		respond.JSONError(w, respond.NewNotFound("no account with that email"))
		return
	}

	member := &models.Member{
		OrganizationID: orgID,
		UserID:         user.ID,
		Role:           role,
		CreatedAt:      time.Now(),
	}
	if err := h.storage.Organizations().AddMember(ctx, member); err != nil {
		if errors.Is(err, storage.ErrDuplicateMember) {
			respond.JSONError(w, respond.NewConflict("user is already a member"))
			return
		}
		log.Printf("add member error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("member %s added to organization %s with role %s", user.ID, orgID, role)
	respond.Created(w, &MemberResponse{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     string(role),
		JoinedAt: member.CreatedAt.Format(time.RFC3339),
	})
}

// UpdateMemberRole changes a member's role. Demoting the last admin is
// rejected so the organization never ends up unmanageable.
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respond.JSONError(w, respond.NewBadRequest("user id required"))
		return
	}

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if !models.ValidRole(req.Role) {
		respond.JSONError(w, respond.NewValidationError("role must be admin, manager, or user"))
		return
	}
	role := models.Role(req.Role)

	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	member, err := h.storage.Organizations().GetMember(ctx, orgID, userID)
	if err != nil {
		log.Printf("update member error: get: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if member == nil {
		respond.JSONError(w, respond.NewNotFound("member not found"))
		return
	}

	if member.Role == models.RoleAdmin && role != models.RoleAdmin {
		if ok := h.ensureNotLastAdmin(w, r, orgID); !ok {
			return
		}
	}

	if err := h.storage.Organizations().UpdateMemberRole(ctx, orgID, userID, role); err != nil {
		log.Printf("update member error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("member %s role changed to %s in organization %s", userID, role, orgID)
	respond.NoContent(w)
}

// RemoveMember removes a member. Removing the last admin is rejected.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		respond.JSONError(w, respond.NewBadRequest("user id required"))
		return
	}

	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	member, err := h.storage.Organizations().GetMember(ctx, orgID, userID)
	if err != nil {
		log.Printf("remove member error: get: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}
	if member == nil {
		respond.JSONError(w, respond.NewNotFound("member not found"))
		return
	}

	if member.Role == models.RoleAdmin {
		if ok := h.ensureNotLastAdmin(w, r, orgID); !ok {
			return
		}
	}

	if err := h.storage.Organizations().RemoveMember(ctx, orgID, userID); err != nil {
		log.Printf("remove member error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	log.Printf("member %s removed from organization %s", userID, orgID)
	respond.NoContent(w)
}

// ensureNotLastAdmin writes a conflict response and returns false when the
// organization has a single admin left.
func (h *Handler) ensureNotLastAdmin(w http.ResponseWriter, r *http.Request, orgID string) bool {
	admins, err := h.storage.Organizations().CountAdmins(r.Context(), orgID)
	if err != nil {
		log.Printf("count admins error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return false
	}
	if admins <= 1 {
		respond.JSONError(w, respond.NewConflict("organization must keep at least one admin"))
		return false
	}
	return true
}

// capabilityNames flattens the role's capability set for the wire, so
// clients gate UI actions on the same table the server enforces.
func capabilityNames(role models.Role) []string {
	caps := permissions.Capabilities(role)
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}

func organizationToResponse(org *models.Organization) *OrganizationResponse {
	return &OrganizationResponse{
		ID:        org.ID,
		Name:      org.Name,
		CreatedBy: org.CreatedBy,
		CreatedAt: org.CreatedAt.Format(time.RFC3339),
		UpdatedAt: org.UpdatedAt.Format(time.RFC3339),
	}
}
