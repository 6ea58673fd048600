package rbac

// NavItem is one sidebar entry. Its visibility follows the route rules covering
// Href plus the optional AnyOf requirement.
type NavItem struct {
	Title    string
	Href     string
	Icon     string
	AnyOf    []Permission
	Children []NavItem
}

// DefaultNavigation returns the application sidebar.
func DefaultNavigation() []NavItem {
	return []NavItem{
		{Title: "Tableau de bord", Href: "/", Icon: "dashboard"},
		{Title: "Paroissiens", Href: "/paroissiens", Icon: "users"},
		{Title: "Associations", Href: "/associations", Icon: "building"},
		{
			Title: "Finances",
			Href:  "/finances",
			Icon:  "wallet",
			Children: []NavItem{
				{Title: "Engagements", Href: "/finances/engagements"},
				{Title: "Versements", Href: "/finances/versements"},
				{Title: "Offrandes", Href: "/finances/offrandes"},
			},
		},
		{Title: "Rapports", Href: "/rapports", Icon: "file"},
		{Title: "Paramètres", Href: "/settings", Icon: "settings"},
	}
}

// FilterNavigation keeps the items role may open. A parent whose children were
// all removed disappears as well.
func FilterNavigation(items []NavItem, m *Matrix, routes RouteTable, role Role) []NavItem {
	filtered := make([]NavItem, 0, len(items))
	for _, item := range items {
		if len(item.AnyOf) > 0 && !m.HasAnyPermission(role, item.AnyOf...) {
			continue
		}
		if !CanReach(m, routes, role, item.Href) {
			continue
		}
		if item.Children != nil {
			children := FilterNavigation(item.Children, m, routes, role)
			if len(children) == 0 {
				continue
			}
			item.Children = children
		}
		filtered = append(filtered, item)
	}
	return filtered
}

// CanReach reports whether the route rules covering path admit role.
func CanReach(m *Matrix, routes RouteTable, role Role, path string) bool {
	for _, rule := range routes.Matching(path) {
		if !m.HasAnyPermission(role, rule.AnyOf...) {
			return false
		}
	}
	return true
}
