package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/shared"
)

func gatedRequest(principal *Principal) (*http.Request, *shared.Session) {
	sess := shared.NewSessionManager(nil, "test", time.Hour, false).NewSession()
	req := httptest.NewRequest(http.MethodPost, "/paroissiens/1/delete", nil)
	ctx := shared.ContextWithSession(req.Context(), sess)
	if principal != nil {
		ctx = ContextWithPrincipal(ctx, principal)
	}
	return req.WithContext(ctx), sess
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAnyAllows(t *testing.T) {
	m := Middleware{Matrix: DefaultMatrix()}
	req, _ := gatedRequest(&Principal{ID: 1, Role: RoleAdmin})
	rr := httptest.NewRecorder()
	m.RequireAny(PermDeleteParoissiens, PermManageSystem)(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAnyDeniesWithFlash(t *testing.T) {
	m := Middleware{Matrix: DefaultMatrix()}
	req, sess := gatedRequest(&Principal{ID: 2, Role: RoleSecretaire})
	rr := httptest.NewRecorder()
	m.RequireAny(PermDeleteParoissiens)(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, ActionUnavailableMessage, flash.Message)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	m := Middleware{Matrix: DefaultMatrix(), HomePath: "/finances"}
	req, _ := gatedRequest(&Principal{ID: 3, Role: RoleTresorier})
	rr := httptest.NewRecorder()
	m.RequireAll(PermViewVersements, PermDeleteVersements)(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/finances", rr.Header().Get("Location"))

	req, _ = gatedRequest(&Principal{ID: 3, Role: RoleTresorier})
	rr = httptest.NewRecorder()
	m.RequireAll(PermViewVersements, PermCreateVersements)(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGateWithoutPrincipalRedirects(t *testing.T) {
	m := Middleware{Matrix: DefaultMatrix()}
	req, _ := gatedRequest(nil)
	rr := httptest.NewRecorder()
	m.RequireAll()(okHandler()).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestCan(t *testing.T) {
	m := Middleware{Matrix: DefaultMatrix()}
	req, _ := gatedRequest(&Principal{ID: 4, Role: RoleGestionnaire})
	assert.True(t, m.Can(req, PermCreateEngagements))
	assert.False(t, m.Can(req, PermExportData))

	anon, _ := gatedRequest(nil)
	assert.False(t, m.Can(anon, PermViewParoissiens))
}

func TestFilterNavigation(t *testing.T) {
	m := DefaultMatrix()
	routes := DefaultRouteTable()

	titles := func(items []NavItem) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.Title)
		}
		return out
	}

	secretaire := FilterNavigation(DefaultNavigation(), m, routes, RoleSecretaire)
	assert.Equal(t, []string{"Tableau de bord", "Paroissiens", "Associations", "Paramètres"}, titles(secretaire))

	tresorier := FilterNavigation(DefaultNavigation(), m, routes, RoleTresorier)
	assert.Equal(t, []string{"Tableau de bord", "Paroissiens", "Finances", "Rapports", "Paramètres"}, titles(tresorier))
	for _, item := range tresorier {
		if item.Title == "Finances" {
			assert.Equal(t, []string{"Versements", "Offrandes"}, titles(item.Children))
		}
	}

	all := FilterNavigation(DefaultNavigation(), m, routes, RoleSuperAdmin)
	assert.Len(t, all, len(DefaultNavigation()))

	assert.Equal(t, []string{"Tableau de bord", "Paramètres"}, titles(FilterNavigation(DefaultNavigation(), m, routes, "INCONNU")))
}

func TestFilterNavigationHidesEmptyParents(t *testing.T) {
	grants := DefaultGrants()
	grants[RoleGestionnaire] = []Permission{PermAccessFinances}
	m := MustNewMatrix(grants)

	items := FilterNavigation(DefaultNavigation(), m, DefaultRouteTable(), RoleGestionnaire)
	for _, item := range items {
		assert.NotEqual(t, "Finances", item.Title)
	}
}
