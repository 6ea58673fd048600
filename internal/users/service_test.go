package users

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newMemoryRepo(seed ...User) *memoryRepo {
	r := &memoryRepo{users: map[int64]User{}, hashes: map[int64]string{}}
	for _, u := range seed {
		r.nextID++
		u.ID = r.nextID
		r.users[u.ID] = u
	}
	return r
}

func (r *memoryRepo) List(_ context.Context, filters ListFilters) ([]User, int, error) {
	var out []User
	for _, u := range r.users {
		if filters.Role != "" && u.Role != filters.Role {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) Create(_ context.Context, u User, hash string) (User, error) {
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = u
	r.hashes[u.ID] = hash
	return u, nil
}

func (r *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := r.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.IsActive = active
	r.users[id] = u
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memoryRepo) CountActiveRole(_ context.Context, role string) (int, error) {
	n := 0
	for _, u := range r.users {
		if string(u.Role) == role && u.IsActive {
			n++
		}
	}
	return n, nil
}

type auditSpy struct{ logs []shared.AuditLog }

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func newTestService(repo Repository) (*Service, *auditSpy) {
	audit := &auditSpy{}
	svc := NewService(repo, audit, nil)
	svc.cost = bcrypt.MinCost
	return svc, audit
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc, audit := newTestService(repo)

	u, err := svc.Create(context.Background(), 1, Form{
		Name: " Paul Trésorier ", Email: " Paul@Paroisse.CM ", Password: "secret1", Role: "tresorier", IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Paul Trésorier", u.Name)
	assert.Equal(t, "paul@paroisse.cm", u.Email)
	assert.Equal(t, rbac.RoleTresorier, u.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[u.ID]), []byte("secret1")))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "user", audit.logs[0].Entity)
	assert.NotContains(t, audit.logs[0].Meta, "password")
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo())
	cases := map[string]struct {
		form  Form
		field string
	}{
		"short password": {Form{Name: "Jean", Email: "j@p.cm", Password: "12345", Role: "ADMIN"}, "password"},
		"bad email":      {Form{Name: "Jean", Email: "jean", Password: "123456", Role: "ADMIN"}, "email"},
		"unknown role":   {Form{Name: "Jean", Email: "j@p.cm", Password: "123456", Role: "PASTEUR"}, "role"},
		"missing name":   {Form{Email: "j@p.cm", Password: "123456", Role: "ADMIN"}, "name"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), 1, tc.form)
			require.ErrorIs(t, err, shared.ErrValidation)
			assert.Contains(t, shared.FieldErrors(err), tc.field)
		})
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo(User{Email: "a@p.cm", Role: rbac.RoleAdmin, IsActive: true})
	svc, _ := newTestService(repo)
	_, err := svc.Create(context.Background(), 1, Form{Name: "Autre", Email: "A@p.cm", Password: "123456", Role: "ADMIN"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, shared.FieldErrors(err), "email")
}

func TestDeactivateProtections(t *testing.T) {
	repo := newMemoryRepo(
		User{Email: "root@p.cm", Role: rbac.RoleSuperAdmin, IsActive: true},
		User{Email: "admin@p.cm", Role: rbac.RoleAdmin, IsActive: true},
	)
	svc, _ := newTestService(repo)
	ctx := context.Background()

	err := svc.Deactivate(ctx, 2, 2)
	var conflict *shared.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Contains(t, conflict.Message, "propre compte")

	err = svc.Deactivate(ctx, 2, 1)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.True(t, repo.users[1].IsActive)

	require.NoError(t, svc.Deactivate(ctx, 1, 2))
	assert.False(t, repo.users[2].IsActive)
	require.NoError(t, svc.Activate(ctx, 1, 2))
	assert.True(t, repo.users[2].IsActive)
}

func TestDeleteSecondSuperAdmin(t *testing.T) {
	repo := newMemoryRepo(
		User{Email: "root@p.cm", Role: rbac.RoleSuperAdmin, IsActive: true},
		User{Email: "root2@p.cm", Role: rbac.RoleSuperAdmin, IsActive: true},
	)
	svc, audit := newTestService(repo)
	require.NoError(t, svc.Delete(context.Background(), 1, 2))
	assert.NotContains(t, repo.users, int64(2))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditDelete, audit.logs[0].Action)

	assert.ErrorIs(t, svc.Delete(context.Background(), 1, 99), shared.ErrNotFound)
}

func TestRoleOptionsFollowPrivilegeOrder(t *testing.T) {
	opts := RoleOptions()
	require.Len(t, opts, len(rbac.AllRoles()))
	assert.Equal(t, rbac.RoleSuperAdmin, opts[0].Value)
	assert.Equal(t, "Secrétaire", opts[len(opts)-1].Label)
}
