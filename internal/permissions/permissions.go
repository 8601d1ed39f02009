// Package permissions maps organization roles to capability sets. This table
// is the single authority for access decisions; handlers derive every gate
// from Check and never hard-code per-endpoint role comparisons.
package permissions

import (
	"github.com/ponto-labs/pontual/internal/models"
)

// Capability names an operation a member may be allowed to invoke.
type Capability string

const (
	CapEditOrganization Capability = "edit_organization"
	CapManageMembers    Capability = "manage_members"
	CapManageProjects   Capability = "manage_projects"
	CapDeleteProjects   Capability = "delete_projects"
	CapFinishProjects   Capability = "finish_projects"
	CapViewAllEntries   Capability = "view_all_entries"
	CapTrackOwnTime     Capability = "track_own_time"
)

// grants is the static role -> capability table. Capability sets are strictly
// nested: admin ⊇ manager ⊇ user.
var grants = map[models.Role][]Capability{
	models.RoleAdmin: {
		CapEditOrganization,
		CapManageMembers,
		CapManageProjects,
		CapDeleteProjects,
		CapFinishProjects,
		CapViewAllEntries,
		CapTrackOwnTime,
	},
	models.RoleManager: {
		CapViewAllEntries,
		CapTrackOwnTime,
	},
	models.RoleUser: {
		CapTrackOwnTime,
	},
}

// Check reports whether the role grants the capability. A caller with no
// membership has the zero Role and therefore no capabilities; unknown roles
// fail closed.
func Check(role models.Role, cap Capability) bool {
	for _, granted := range grants[role] {
		if granted == cap {
			return true
		}
	}
	return false
}

// Capabilities returns the capability set for a role.
func Capabilities(role models.Role) []Capability {
	caps := grants[role]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// All lists every capability in the table.
func All() []Capability {
	return []Capability{
		CapEditOrganization,
		CapManageMembers,
		CapManageProjects,
		CapDeleteProjects,
		CapFinishProjects,
		CapViewAllEntries,
		CapTrackOwnTime,
	}
}
