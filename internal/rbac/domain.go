package rbac

import (
	"context"
	"net/http"
	"strings"
)

// Role is the single role attached to a user account.
type Role string

// Known roles.
const (
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleAdmin        Role = "ADMIN"
	RoleGestionnaire Role = "GESTIONNAIRE"
	RoleTresorier    Role = "TRESORIER"
	RoleSecretaire   Role = "SECRETAIRE"
)

var roleLabels = map[Role]string{
	RoleSuperAdmin:   "Super administrateur",
	RoleAdmin:        "Administrateur",
	RoleGestionnaire: "Gestionnaire",
	RoleTresorier:    "Trésorier",
	RoleSecretaire:   "Secrétaire",
}

// AllRoles lists the roles from most to least privileged.
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleGestionnaire, RoleTresorier, RoleSecretaire}
}

// ParseRole normalises a stored role value. Unknown values are returned as-is
// with ok=false so callers can log them; the matrix denies them anyway.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := roleLabels[role]
	return role, ok
}

// Known reports whether the role is part of the closed role set.
func (r Role) Known() bool {
	_, ok := roleLabels[r]
	return ok
}

// Label returns the French display name.
func (r Role) Label() string {
	if label, ok := roleLabels[r]; ok {
		return label
	}
	return string(r)
}

func (r Role) String() string { return string(r) }

// Principal describes the authenticated actor.
type Principal struct {
	ID       int64
	Name     string
	Email    string
	Role     Role
	IsActive bool
}

// PrincipalResolver extracts the authenticated principal from a request. A nil
// principal with a nil error means the caller is anonymous.
type PrincipalResolver interface {
	Resolve(r *http.Request) (*Principal, error)
}

// PrincipalResolverFunc adapts a function to PrincipalResolver.
type PrincipalResolverFunc func(r *http.Request) (*Principal, error)

// Resolve implements PrincipalResolver.
func (f PrincipalResolverFunc) Resolve(r *http.Request) (*Principal, error) {
	return f(r)
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal resolved by the guard, if any.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// ActorID returns the principal id for audit records, or 0.
func ActorID(ctx context.Context) int64 {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.ID
	}
	return 0
}
