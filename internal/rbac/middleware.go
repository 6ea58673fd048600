package rbac

import (
	"log/slog"
	"net/http"

	"github.com/paroisse/paroisse/internal/shared"
)

// ActionUnavailableMessage is flashed when an action gate refuses a request.
const ActionUnavailableMessage = "Cette action n'est pas disponible pour votre rôle."

// Middleware gates handlers on permissions of the principal resolved by the
// Guard.
type Middleware struct {
	Matrix *Matrix
	Logger *slog.Logger
	// HomePath receives refused requests; defaults to "/".
	HomePath string
}

// RequireAny lets the request through when the principal holds at least one of
// perms.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.gate("require any", perms, func(role Role) bool {
		return m.Matrix.HasAnyPermission(role, perms...)
	})
}

// RequireAll lets the request through when the principal holds every perm.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.gate("require all", perms, func(role Role) bool {
		return m.Matrix.HasAllPermissions(role, perms...)
	})
}

// Can reports whether the request principal holds p.
func (m Middleware) Can(r *http.Request, p Permission) bool {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		return false
	}
	return m.Matrix.HasPermission(principal.Role, p)
}

func (m Middleware) gate(name string, perms []Permission, allowed func(Role) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal != nil && allowed(principal.Role) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				attrs := []any{slog.String("path", r.URL.Path), slog.Any("permissions", perms)}
				if principal != nil {
					attrs = append(attrs, slog.Int64("user_id", principal.ID), slog.String("role", string(principal.Role)))
				}
				m.Logger.Warn("rbac "+name+" denied", attrs...)
			}
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "danger", Message: ActionUnavailableMessage})
			}
			home := m.HomePath
			if home == "" {
				home = "/"
			}
			http.Redirect(w, r, home, http.StatusSeeOther)
		})
	}
}
