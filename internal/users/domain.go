package users

import (
	"time"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
)

// User is an application account as shown in settings.
type User struct {
	ID          int64
	Email       string
	Name        string
	Role        rbac.Role
	IsActive    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleLabel is the French role name.
func (u User) RoleLabel() string { return u.Role.Label() }

// ListFilters narrows the user listing.
type ListFilters struct {
	shared.ListParams
	Role     rbac.Role
	IsActive *bool
}

// Form is the create payload.
type Form struct {
	Name     string `form:"name" validate:"required,min=2,max=120"`
	Email    string `form:"email" validate:"required,email,max=160"`
	Password string `form:"password" validate:"required,min=6,max=72"`
	Role     string `form:"role" validate:"required"`
	IsActive bool   `form:"is_active"`
}

// RoleOption feeds the role select.
type RoleOption struct {
	Value rbac.Role
	Label string
}

// RoleOptions lists every role in privilege order.
func RoleOptions() []RoleOption {
	roles := rbac.AllRoles()
	out := make([]RoleOption, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleOption{Value: r, Label: r.Label()})
	}
	return out
}
