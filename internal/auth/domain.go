package auth

import (
	"time"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
)

// User represents an account able to sign in.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionUser is the snapshot kept in the session after login.
func (u *User) SessionUser() shared.SessionUser {
	role, _ := rbac.ParseRole(u.Role)
	return shared.SessionUser{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     string(role),
		IsActive: u.IsActive,
	}
}
