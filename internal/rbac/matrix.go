package rbac

import (
	"errors"
	"fmt"
)

// ErrInvalidMatrix is returned when a role table violates the matrix invariants.
var ErrInvalidMatrix = errors.New("rbac: invalid role matrix")

// Matrix maps every known role to its permission set. A Matrix is immutable
// once built and safe for concurrent reads.
type Matrix struct {
	grants map[Role]PermissionSet
}

// NewMatrix validates the table and returns a Matrix. Every known role must be
// present, no unknown role may appear and SUPER_ADMIN must hold the full
// catalog.
func NewMatrix(table map[Role][]Permission) (*Matrix, error) {
	grants := make(map[Role]PermissionSet, len(table))
	for role, perms := range table {
		if !role.Known() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidMatrix, role)
		}
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("%w: role %s references permission %d outside the catalog", ErrInvalidMatrix, role, p)
			}
		}
		grants[role] = NewPermissionSet(perms...)
	}
	for _, role := range AllRoles() {
		if _, ok := grants[role]; !ok {
			return nil, fmt.Errorf("%w: role %s has no entry", ErrInvalidMatrix, role)
		}
	}
	if grants[RoleSuperAdmin] != FullPermissionSet() {
		return nil, fmt.Errorf("%w: %s must hold every permission", ErrInvalidMatrix, RoleSuperAdmin)
	}
	return &Matrix{grants: grants}, nil
}

// MustNewMatrix is NewMatrix for static tables; it panics on invalid input.
func MustNewMatrix(table map[Role][]Permission) *Matrix {
	m, err := NewMatrix(table)
	if err != nil {
		panic(err)
	}
	return m
}

// DefaultMatrix returns the role matrix used by the application.
func DefaultMatrix() *Matrix {
	return MustNewMatrix(DefaultGrants())
}

// DefaultGrants returns a fresh copy of the built-in role table.
func DefaultGrants() map[Role][]Permission {
	return map[Role][]Permission{
		RoleSuperAdmin: AllPermissions(),
		RoleAdmin: {
			PermViewUsers, PermCreateUsers, PermEditUsers,
			PermViewParoissiens, PermCreateParoissiens, PermEditParoissiens, PermDeleteParoissiens,
			PermViewAssociations, PermCreateAssociations, PermEditAssociations, PermDeleteAssociations,
			PermViewEngagements, PermCreateEngagements, PermEditEngagements, PermDeleteEngagements,
			PermViewVersements, PermCreateVersements, PermEditVersements, PermDeleteVersements,
			PermViewCotisations, PermCreateCotisations, PermEditCotisations, PermDeleteCotisations,
			PermViewOffrandes, PermCreateOffrandes, PermEditOffrandes, PermDeleteOffrandes,
			PermAccessFinances, PermViewReports, PermExportData,
		},
		RoleGestionnaire: {
			PermViewParoissiens, PermCreateParoissiens, PermEditParoissiens,
			PermViewAssociations,
			PermViewEngagements, PermCreateEngagements, PermEditEngagements,
			PermAccessFinances, PermViewReports,
		},
		RoleTresorier: {
			PermViewParoissiens,
			PermViewCotisations, PermCreateCotisations, PermEditCotisations,
			PermViewVersements, PermCreateVersements, PermEditVersements,
			PermViewOffrandes, PermCreateOffrandes, PermEditOffrandes,
			PermAccessFinances, PermViewReports, PermExportData,
		},
		RoleSecretaire: {
			PermViewParoissiens, PermCreateParoissiens, PermEditParoissiens,
			PermViewAssociations,
			PermViewEngagements,
			PermViewCotisations,
			PermViewVersements,
			PermViewReports,
		},
	}
}

// HasPermission reports whether role holds p. Unknown roles and permissions
// outside the catalog yield false.
func (m *Matrix) HasPermission(role Role, p Permission) bool {
	set, ok := m.lookup(role)
	return ok && set.Has(p)
}

// HasAllPermissions reports whether role holds every permission in perms. An
// empty list is satisfied by any known role.
func (m *Matrix) HasAllPermissions(role Role, perms ...Permission) bool {
	set, ok := m.lookup(role)
	if !ok {
		return false
	}
	for _, p := range perms {
		if !set.Has(p) {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether role holds at least one permission in perms.
// An empty list is never satisfied.
func (m *Matrix) HasAnyPermission(role Role, perms ...Permission) bool {
	set, ok := m.lookup(role)
	if !ok {
		return false
	}
	for _, p := range perms {
		if set.Has(p) {
			return true
		}
	}
	return false
}

// Permissions lists the permissions of role in catalog order.
func (m *Matrix) Permissions(role Role) []Permission {
	set, ok := m.lookup(role)
	if !ok {
		return []Permission{}
	}
	return set.Slice()
}

// Set exposes the raw permission set of role; zero for unknown roles.
func (m *Matrix) Set(role Role) PermissionSet {
	set, _ := m.lookup(role)
	return set
}

func (m *Matrix) lookup(role Role) (PermissionSet, bool) {
	if m == nil {
		return 0, false
	}
	set, ok := m.grants[role]
	return set, ok
}
