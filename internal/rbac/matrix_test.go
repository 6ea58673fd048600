package rbac

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIsExhaustive(t *testing.T) {
	seen := make(map[string]Permission)
	for _, p := range AllPermissions() {
		require.True(t, p.Valid())
		require.NotEmpty(t, p.Key(), "permission %d has no key", p)
		require.NotEmpty(t, p.Label(), "permission %s has no label", p.Key())
		if prev, dup := seen[p.Key()]; dup {
			t.Fatalf("key %q used by %d and %d", p.Key(), prev, p)
		}
		seen[p.Key()] = p

		parsed, ok := ParsePermission(p.Key())
		require.True(t, ok)
		assert.Equal(t, p, parsed)
	}
	assert.Len(t, seen, int(numPermissions))
}

func TestParsePermissionRejectsUnknownKeys(t *testing.T) {
	_, ok := ParsePermission("view-everything")
	assert.False(t, ok)

	p, ok := ParsePermission("  VIEW-Versements ")
	assert.True(t, ok)
	assert.Equal(t, PermViewVersements, p)
}

func TestInvalidPermissionValue(t *testing.T) {
	bad := Permission(200)
	assert.False(t, bad.Valid())
	assert.Empty(t, bad.Key())
	assert.Equal(t, "permission(invalid)", bad.String())
	assert.False(t, FullPermissionSet().Has(bad))
}

func TestSuperAdminHoldsEveryPermission(t *testing.T) {
	m := DefaultMatrix()
	for _, p := range AllPermissions() {
		assert.True(t, m.HasPermission(RoleSuperAdmin, p), p.Key())
	}
	assert.Equal(t, AllPermissions(), m.Permissions(RoleSuperAdmin))
}

func TestVacuousTruthAsymmetry(t *testing.T) {
	m := DefaultMatrix()
	for _, role := range AllRoles() {
		assert.True(t, m.HasAllPermissions(role), role)
		assert.False(t, m.HasAnyPermission(role), role)
	}
}

func TestUnknownRoleIsFailClosed(t *testing.T) {
	m := DefaultMatrix()
	for _, role := range []Role{"", "ROOT", "super_admin", "TRESORIER "} {
		assert.False(t, m.HasPermission(role, PermViewParoissiens), role)
		assert.False(t, m.HasAllPermissions(role), role)
		assert.False(t, m.HasAllPermissions(role, PermViewParoissiens), role)
		assert.False(t, m.HasAnyPermission(role, AllPermissions()...), role)
		assert.Empty(t, m.Permissions(role), role)
		assert.NotNil(t, m.Permissions(role), role)
	}
}

func TestNilMatrixDeniesEverything(t *testing.T) {
	var m *Matrix
	assert.False(t, m.HasPermission(RoleSuperAdmin, PermManageSystem))
	assert.False(t, m.HasAllPermissions(RoleSuperAdmin))
	assert.Empty(t, m.Permissions(RoleSuperAdmin))
}

func TestTresorierScenario(t *testing.T) {
	m := DefaultMatrix()
	assert.True(t, m.HasPermission(RoleTresorier, PermViewVersements))
	assert.False(t, m.HasPermission(RoleTresorier, PermManageSystem))
	assert.True(t, m.HasAnyPermission(RoleTresorier, PermManageSystem, PermExportData))
	assert.False(t, m.HasAllPermissions(RoleTresorier, PermManageSystem, PermExportData))
}

func TestAdminLacksOnlyUserDeletionAndSystem(t *testing.T) {
	m := DefaultMatrix()
	for _, p := range AllPermissions() {
		want := p != PermDeleteUsers && p != PermManageSystem
		assert.Equal(t, want, m.HasPermission(RoleAdmin, p), p.Key())
	}
}

func TestFinanceAccessRoles(t *testing.T) {
	m := DefaultMatrix()
	var got []Role
	for _, role := range AllRoles() {
		if m.HasPermission(role, PermAccessFinances) {
			got = append(got, role)
		}
	}
	assert.ElementsMatch(t, []Role{RoleSuperAdmin, RoleAdmin, RoleGestionnaire, RoleTresorier}, got)
}

func TestQueriesAreIdempotent(t *testing.T) {
	m := DefaultMatrix()
	var wg sync.WaitGroup
	results := make([]bool, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.HasPermission(RoleGestionnaire, PermEditEngagements)
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.True(t, r)
	}
}

func TestPermissionsAreInCatalogOrder(t *testing.T) {
	m := DefaultMatrix()
	perms := m.Permissions(RoleSecretaire)
	for i := 1; i < len(perms); i++ {
		assert.Less(t, perms[i-1], perms[i])
	}
	assert.Equal(t, len(DefaultGrants()[RoleSecretaire]), len(perms))
}

func TestNewMatrixValidation(t *testing.T) {
	t.Run("missing role", func(t *testing.T) {
		grants := DefaultGrants()
		delete(grants, RoleSecretaire)
		_, err := NewMatrix(grants)
		assert.True(t, errors.Is(err, ErrInvalidMatrix))
	})
	t.Run("super admin must be complete", func(t *testing.T) {
		grants := DefaultGrants()
		grants[RoleSuperAdmin] = grants[RoleAdmin]
		_, err := NewMatrix(grants)
		assert.ErrorIs(t, err, ErrInvalidMatrix)
	})
	t.Run("unknown role", func(t *testing.T) {
		grants := DefaultGrants()
		grants["AUDITEUR"] = nil
		_, err := NewMatrix(grants)
		assert.ErrorIs(t, err, ErrInvalidMatrix)
	})
	t.Run("permission outside catalog", func(t *testing.T) {
		grants := DefaultGrants()
		grants[RoleSecretaire] = append(grants[RoleSecretaire], numPermissions)
		_, err := NewMatrix(grants)
		assert.ErrorIs(t, err, ErrInvalidMatrix)
	})
	t.Run("alternate matrix", func(t *testing.T) {
		grants := DefaultGrants()
		grants[RoleSecretaire] = nil
		m, err := NewMatrix(grants)
		require.NoError(t, err)
		assert.False(t, m.HasPermission(RoleSecretaire, PermViewParoissiens))
		assert.True(t, m.HasAllPermissions(RoleSecretaire))
	})
}

func TestDefaultGrantsReturnsCopy(t *testing.T) {
	a := DefaultGrants()
	a[RoleSecretaire] = nil
	assert.NotEmpty(t, DefaultGrants()[RoleSecretaire])
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" tresorier ")
	assert.True(t, ok)
	assert.Equal(t, RoleTresorier, role)
	assert.Equal(t, "Trésorier", role.Label())

	role, ok = ParseRole("pasteur")
	assert.False(t, ok)
	assert.Equal(t, "PASTEUR", role.Label())
}

func TestBuildMatrixView(t *testing.T) {
	v := BuildMatrixView(DefaultMatrix())
	require.Len(t, v.Columns, len(AllRoles()))
	require.Len(t, v.Rows, int(numPermissions))
	assert.Equal(t, RoleSuperAdmin, v.Columns[0].Role)
	assert.Equal(t, int(numPermissions), v.Columns[0].Count)

	for _, row := range v.Rows {
		assert.True(t, row.Granted[0], row.Key)
		if row.Key == PermManageSystem.Key() {
			assert.Equal(t, []bool{true, false, false, false, false}, row.Granted)
		}
	}
}
