package rbac

import (
	"path"
	"strings"
)

// RouteRule gates every path under Prefix. The caller must hold at least one
// permission of AnyOf.
type RouteRule struct {
	Prefix string
	AnyOf  []Permission
}

// RouteTable configures the route guard.
type RouteTable struct {
	LoginPath string
	HomePath  string
	// Public prefixes are reachable without a session.
	Public []string
	// Excluded prefixes and file extensions never reach the guard.
	ExcludedPrefixes   []string
	ExcludedExtensions []string
	Rules              []RouteRule
}

// DefaultRouteTable returns the application's route rules. Every rule is
// expressed with catalog permissions.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		LoginPath: "/login",
		HomePath:  "/",
		Public:    []string{"/login"},
		ExcludedPrefixes: []string{
			"/static",
			"/favicon.ico",
			"/healthz",
			"/metrics",
		},
		ExcludedExtensions: []string{".svg", ".png", ".jpg", ".jpeg", ".gif", ".webp"},
		Rules: []RouteRule{
			{Prefix: "/settings/users", AnyOf: []Permission{PermViewUsers}},
			{Prefix: "/settings/roles", AnyOf: []Permission{PermManageSystem}},
			{Prefix: "/settings/system", AnyOf: []Permission{PermManageSystem}},
			{Prefix: "/settings/journal", AnyOf: []Permission{PermManageSystem}},
			{Prefix: "/jobs", AnyOf: []Permission{PermManageSystem}},
			{Prefix: "/paroissiens", AnyOf: []Permission{PermViewParoissiens}},
			{Prefix: "/associations", AnyOf: []Permission{PermViewAssociations}},
			{Prefix: "/finances", AnyOf: []Permission{PermAccessFinances}},
			{Prefix: "/finances/engagements", AnyOf: []Permission{PermViewEngagements}},
			{Prefix: "/finances/versements", AnyOf: []Permission{PermViewVersements}},
			{Prefix: "/finances/offrandes", AnyOf: []Permission{PermViewOffrandes}},
			{Prefix: "/rapports", AnyOf: []Permission{PermAccessFinances}},
			{Prefix: "/rapports", AnyOf: []Permission{PermViewReports}},
		},
	}
}

// IsExcluded reports whether p bypasses the guard entirely.
func (t RouteTable) IsExcluded(p string) bool {
	for _, prefix := range t.ExcludedPrefixes {
		if matchPrefix(p, prefix) {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range t.ExcludedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsPublic reports whether p is reachable anonymously.
func (t RouteTable) IsPublic(p string) bool {
	for _, prefix := range t.Public {
		if matchPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// IsLogin reports whether p belongs to the login surface.
func (t RouteTable) IsLogin(p string) bool {
	return matchPrefix(p, t.LoginPath)
}

// Matching returns every rule whose prefix covers p, in table order.
func (t RouteTable) Matching(p string) []RouteRule {
	var matched []RouteRule
	for _, rule := range t.Rules {
		if matchPrefix(p, rule.Prefix) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// matchPrefix matches whole path segments: "/finances" covers
// "/finances/versements" but not "/financesX".
func matchPrefix(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	if prefix == "/" {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
