package middleware

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ponto-labs/pontual/internal/api/respond"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/permissions"
	"github.com/ponto-labs/pontual/internal/storage"
)

const (
	organizationIDKey contextKey = "organization_id"
	roleKey           contextKey = "organization_role"
)

// OrganizationMember resolves the caller's membership in the {orgID} route
// parameter and stores the organization ID and role in the request context.
// Roles are read from storage on every request rather than carried in the
// token, so role changes take effect immediately. Non-members get 403; the
// organization's existence is not revealed to them.
func OrganizationMember(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := chi.URLParam(r, "orgID")
			userID := GetUserID(r.Context())
			if orgID == "" || userID == "" {
				respond.JSONError(w, respond.ErrForbidden)
				return
			}

			member, err := store.Organizations().GetMember(r.Context(), orgID, userID)
			if err != nil {
				log.Printf("membership lookup failed for user %s in org %s: %v", userID, orgID, err)
				respond.JSONError(w, respond.ErrForbidden)
				return
			}
			if member == nil {
				respond.JSONError(w, respond.ErrForbidden)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, organizationIDKey, orgID)
			ctx = context.WithValue(ctx, roleKey, member.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCapability returns middleware that rejects callers whose
// organization role lacks the capability. Must run after OrganizationMember.
func RequireCapability(cap permissions.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetOrganizationRole(r.Context())
			if !ok || !permissions.Check(role, cap) {
				respond.JSONError(w, respond.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetOrganizationID returns the organization ID resolved by
// OrganizationMember, or "".
func GetOrganizationID(ctx context.Context) string {
	if v := ctx.Value(organizationIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetOrganizationRole returns the caller's role in the route's organization.
// The second return is false when no membership was resolved.
func GetOrganizationRole(ctx context.Context) (models.Role, bool) {
	if v := ctx.Value(roleKey); v != nil {
		if r, ok := v.(models.Role); ok {
			return r, true
		}
	}
	return "", false
}

// HasCapability reports whether the caller's resolved role grants the
// capability. Missing membership means no capabilities at all.
func HasCapability(ctx context.Context, cap permissions.Capability) bool {
	role, ok := GetOrganizationRole(ctx)
	if !ok {
		return false
	}
	return permissions.Check(role, cap)
}
