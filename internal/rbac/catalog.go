package rbac

import "strings"

// Permission is one allowed action on one resource category. The set is
// closed: values outside the catalog are never granted.
type Permission uint8

// Catalog of permissions. The order defines display order in settings
// screens and the bit position inside PermissionSet.
const (
	PermViewUsers Permission = iota
	PermCreateUsers
	PermEditUsers
	PermDeleteUsers

	PermViewParoissiens
	PermCreateParoissiens
	PermEditParoissiens
	PermDeleteParoissiens

	PermViewAssociations
	PermCreateAssociations
	PermEditAssociations
	PermDeleteAssociations

	PermViewEngagements
	PermCreateEngagements
	PermEditEngagements
	PermDeleteEngagements

	PermViewVersements
	PermCreateVersements
	PermEditVersements
	PermDeleteVersements

	PermViewCotisations
	PermCreateCotisations
	PermEditCotisations
	PermDeleteCotisations

	PermViewOffrandes
	PermCreateOffrandes
	PermEditOffrandes
	PermDeleteOffrandes

	PermAccessFinances
	PermViewReports
	PermExportData

	PermManageSystem

	numPermissions
)

type permissionInfo struct {
	key   string
	label string
}

// catalog is indexed by Permission and must list every constant above, in
// order.
var catalog = [...]permissionInfo{
	{"view-users", "Voir les utilisateurs"},
	{"create-users", "Créer des utilisateurs"},
	{"edit-users", "Modifier des utilisateurs"},
	{"delete-users", "Supprimer des utilisateurs"},

	{"view-paroissiens", "Voir les paroissiens"},
	{"create-paroissiens", "Créer des paroissiens"},
	{"edit-paroissiens", "Modifier des paroissiens"},
	{"delete-paroissiens", "Supprimer des paroissiens"},

	{"view-associations", "Voir les associations"},
	{"create-associations", "Créer des associations"},
	{"edit-associations", "Modifier des associations"},
	{"delete-associations", "Supprimer des associations"},

	{"view-engagements", "Voir les engagements"},
	{"create-engagements", "Créer des engagements"},
	{"edit-engagements", "Modifier des engagements"},
	{"delete-engagements", "Supprimer des engagements"},

	{"view-versements", "Voir les versements"},
	{"create-versements", "Créer des versements"},
	{"edit-versements", "Modifier des versements"},
	{"delete-versements", "Supprimer des versements"},

	{"view-cotisations", "Voir les cotisations"},
	{"create-cotisations", "Créer des cotisations"},
	{"edit-cotisations", "Modifier des cotisations"},
	{"delete-cotisations", "Supprimer des cotisations"},

	{"view-offrandes", "Voir les offrandes"},
	{"create-offrandes", "Créer des offrandes"},
	{"edit-offrandes", "Modifier des offrandes"},
	{"delete-offrandes", "Supprimer des offrandes"},

	{"access-finances", "Accéder aux finances"},
	{"view-reports", "Voir les rapports"},
	{"export-data", "Exporter les données"},

	{"manage-system", "Gérer le système"},
}

// Compile-time check: the catalog has exactly one entry per permission.
var _ = [1]struct{}{}[len(catalog)-int(numPermissions)]

// PermissionSet must hold every permission as one bit.
var _ = [1]struct{}{}[int(numPermissions)/64]

var keyIndex = func() map[string]Permission {
	idx := make(map[string]Permission, len(catalog))
	for i, info := range catalog {
		idx[info.key] = Permission(i)
	}
	return idx
}()

// Valid reports whether p belongs to the catalog.
func (p Permission) Valid() bool {
	return p < numPermissions
}

// Key returns the stable string key, e.g. "view-versements".
func (p Permission) Key() string {
	if !p.Valid() {
		return ""
	}
	return catalog[p].key
}

// Label returns the French presentation label.
func (p Permission) Label() string {
	if !p.Valid() {
		return ""
	}
	return catalog[p].label
}

func (p Permission) String() string {
	if !p.Valid() {
		return "permission(invalid)"
	}
	return catalog[p].key
}

// ParsePermission resolves a string key. Keys are matched case-insensitively.
func ParsePermission(key string) (Permission, bool) {
	p, ok := keyIndex[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}

// AllPermissions returns the full catalog in display order.
func AllPermissions() []Permission {
	perms := make([]Permission, 0, numPermissions)
	for p := Permission(0); p < numPermissions; p++ {
		perms = append(perms, p)
	}
	return perms
}

// PermissionSet is a bit set over the catalog.
type PermissionSet uint64

// NewPermissionSet builds a set, silently dropping values outside the catalog.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		if p.Valid() {
			s |= 1 << p
		}
	}
	return s
}

// FullPermissionSet holds every catalog entry.
func FullPermissionSet() PermissionSet {
	return PermissionSet(1)<<numPermissions - 1
}

// Has reports membership.
func (s PermissionSet) Has(p Permission) bool {
	return p.Valid() && s&(1<<p) != 0
}

// Len returns the number of permissions in the set.
func (s PermissionSet) Len() int {
	n := 0
	for p := Permission(0); p < numPermissions; p++ {
		if s.Has(p) {
			n++
		}
	}
	return n
}

// Slice lists the members in catalog order.
func (s PermissionSet) Slice() []Permission {
	perms := make([]Permission, 0, s.Len())
	for p := Permission(0); p < numPermissions; p++ {
		if s.Has(p) {
			perms = append(perms, p)
		}
	}
	return perms
}
