package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/view"
)

// PermissionsHandler renders the read-only role × permission matrix.
type PermissionsHandler struct {
	matrix *Matrix
	page   view.Page
	rbac   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(matrix *Matrix, page view.Page, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{matrix: matrix, page: page, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(PermManageSystem))
		r.Get("/", h.showMatrix)
	})
}

// RoleColumn is one column of the matrix page.
type RoleColumn struct {
	Role  Role
	Label string
	Count int
}

// PermissionRow is one line of the matrix page; Granted follows Columns.
type PermissionRow struct {
	Key     string
	Label   string
	Granted []bool
}

// MatrixView is the page model of /settings/roles.
type MatrixView struct {
	Columns []RoleColumn
	Rows    []PermissionRow
}

// BuildMatrixView lays m out with roles as columns in privilege order.
func BuildMatrixView(m *Matrix) MatrixView {
	roles := AllRoles()
	out := MatrixView{Columns: make([]RoleColumn, 0, len(roles))}
	for _, role := range roles {
		out.Columns = append(out.Columns, RoleColumn{Role: role, Label: role.Label(), Count: len(m.Permissions(role))})
	}
	for _, p := range AllPermissions() {
		row := PermissionRow{Key: p.Key(), Label: p.Label(), Granted: make([]bool, len(roles))}
		for i, role := range roles {
			row.Granted[i] = m.HasPermission(role, p)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func (h *PermissionsHandler) showMatrix(w http.ResponseWriter, r *http.Request) {
	h.page.Render(w, r, http.StatusOK, "pages/settings/roles.html", "Rôles et permissions", BuildMatrixView(h.matrix))
}
