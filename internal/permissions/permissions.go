// Package permissions maps platform roles to the capabilities they grant.
// The table is static; every function is read-only and safe for concurrent use.
package permissions

import (
	"strings"

	"github.com/eventman/backend/internal/models"
)

// Permission is an atomic authorization unit checked before privileged actions.
type Permission string

const (
	CreateEvent   Permission = "CREATE_EVENT"
	ReadEvent     Permission = "READ_EVENT"
	UpdateEvent   Permission = "UPDATE_EVENT"
	DeleteEvent   Permission = "DELETE_EVENT"
	ManageUsers   Permission = "MANAGE_USERS"
	ViewUsers     Permission = "VIEW_USERS"
	ViewAnalytics Permission = "VIEW_ANALYTICS"
	ViewRevenue   Permission = "VIEW_REVENUE"
	SystemAdmin   Permission = "SYSTEM_ADMIN"
)

var rolePermissions = map[models.Role][]Permission{
	models.RoleAdmin: {
		CreateEvent, ReadEvent, UpdateEvent, DeleteEvent,
		ManageUsers, ViewUsers, ViewAnalytics, ViewRevenue, SystemAdmin,
	},
	models.RoleOrganizer: {
		CreateEvent, ReadEvent, UpdateEvent, DeleteEvent,
		ViewAnalytics, ViewRevenue,
	},
	models.RoleAttendee: {ReadEvent},
	models.RoleGuest:    {ReadEvent},
}

// normalize maps a free-form role string to a known role. Unknown values
// report false and are ignored by every predicate; they never grant anything.
func normalize(role string) (models.Role, bool) {
	r := models.Role(strings.ToUpper(strings.TrimSpace(role)))
	_, known := rolePermissions[r]
	return r, known
}

// Has reports whether any of the given roles grants the permission.
func Has(roles []string, p Permission) bool {
	for _, raw := range roles {
		r, ok := normalize(raw)
		if !ok {
			continue
		}
		for _, granted := range rolePermissions[r] {
			if granted == p {
				return true
			}
		}
	}
	return false
}

// HasAny reports whether any of the permissions is granted. An empty
// permission list reports false.
func HasAny(roles []string, perms ...Permission) bool {
	for _, p := range perms {
		if Has(roles, p) {
			return true
		}
	}
	return false
}

// HasAll reports whether every permission is granted. An empty permission
// list vacuously reports true.
func HasAll(roles []string, perms ...Permission) bool {
	for _, p := range perms {
		if !Has(roles, p) {
			return false
		}
	}
	return true
}

// Of returns the deduplicated union of capabilities across the recognized
// roles, in table order.
func Of(roles []string) []Permission {
	seen := make(map[Permission]struct{})
	var out []Permission
	for _, raw := range roles {
		r, ok := normalize(raw)
		if !ok {
			continue
		}
		for _, p := range rolePermissions[r] {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
