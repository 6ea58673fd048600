package auth

import (
	"net/http"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
)

// SessionResolver reads the principal stored in the request session at login.
type SessionResolver struct{}

// Resolve implements rbac.PrincipalResolver.
func (SessionResolver) Resolve(r *http.Request) (*rbac.Principal, error) {
	user, ok := shared.SessionFromContext(r.Context()).User()
	if !ok || user.ID == 0 {
		return nil, nil
	}
	role, _ := rbac.ParseRole(user.Role)
	return &rbac.Principal{
		ID:       user.ID,
		Name:     user.Name,
		Email:    user.Email,
		Role:     role,
		IsActive: user.IsActive,
	}, nil
}

var _ rbac.PrincipalResolver = SessionResolver{}
