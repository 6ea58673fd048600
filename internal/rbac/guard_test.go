package rbac

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRecorder struct {
	outcomes []string
}

func (r *recordingRecorder) ObserveAuthzDecision(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func staticResolver(p *Principal, err error) PrincipalResolver {
	return PrincipalResolverFunc(func(*http.Request) (*Principal, error) { return p, err })
}

func as(role Role) PrincipalResolver {
	return staticResolver(&Principal{ID: 7, Name: "Test", Role: role, IsActive: true}, nil)
}

func newTestGuard(resolver PrincipalResolver) (*Guard, *recordingRecorder, *bytes.Buffer) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	rec := &recordingRecorder{}
	return NewGuard(DefaultMatrix(), DefaultRouteTable(), resolver, logger, rec), rec, &logs
}

func decide(g *Guard, path string) Decision {
	return g.Decide(httptest.NewRequest(http.MethodGet, path, nil))
}

func TestGuardRedirectsAnonymousToLoginWithCallback(t *testing.T) {
	g, _, _ := newTestGuard(staticResolver(nil, nil))

	d := decide(g, "/paroissiens")
	assert.Equal(t, OutcomeRedirectLogin, d.Outcome)
	assert.Equal(t, "/login?callbackUrl=/paroissiens", d.Location)

	d = decide(g, "/finances/versements/12")
	assert.Equal(t, "/login?callbackUrl=/finances/versements/12", d.Location)
}

func TestGuardOmitsCallbackForHome(t *testing.T) {
	g, _, _ := newTestGuard(staticResolver(nil, nil))
	d := decide(g, "/")
	assert.Equal(t, OutcomeRedirectLogin, d.Outcome)
	assert.Equal(t, "/login", d.Location)
}

func TestGuardEscapesCallback(t *testing.T) {
	g, _, _ := newTestGuard(staticResolver(nil, nil))
	d := decide(g, "/paroissiens/a&b")
	assert.Equal(t, "/login?callbackUrl=/paroissiens/a%26b", d.Location)
}

func TestGuardAllowsPublicRoutesAnonymously(t *testing.T) {
	g, _, _ := newTestGuard(staticResolver(nil, nil))
	assert.Equal(t, OutcomeAllow, decide(g, "/login").Outcome)
	assert.Equal(t, OutcomeAllow, decide(g, "/login/reset").Outcome)
	assert.Equal(t, OutcomeRedirectLogin, decide(g, "/loginx").Outcome)
}

func TestGuardRedirectsAuthenticatedAwayFromLogin(t *testing.T) {
	for _, role := range AllRoles() {
		g, _, _ := newTestGuard(as(role))
		d := decide(g, "/login")
		assert.Equal(t, OutcomeRedirectHome, d.Outcome, role)
		assert.Equal(t, "/", d.Location)
	}
}

func TestGuardSecretaireCannotOpenUserSettings(t *testing.T) {
	g, _, logs := newTestGuard(as(RoleSecretaire))
	d := decide(g, "/settings/users")
	assert.Equal(t, OutcomeRedirectHome, d.Outcome)
	assert.Equal(t, "/", d.Location)
	require.NotNil(t, d.Rule)
	assert.Equal(t, "/settings/users", d.Rule.Prefix)
	assert.Contains(t, logs.String(), "rbac route denied")

	d = decide(g, "/settings/users/12/edit")
	assert.Equal(t, OutcomeRedirectHome, d.Outcome)
}

func TestGuardUserSettingsForAdmins(t *testing.T) {
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin} {
		g, _, _ := newTestGuard(as(role))
		assert.Equal(t, OutcomeAllow, decide(g, "/settings/users").Outcome, role)
	}
}

func TestGuardSystemSettingsSuperAdminOnly(t *testing.T) {
	for _, role := range AllRoles() {
		g, _, _ := newTestGuard(as(role))
		want := OutcomeRedirectHome
		if role == RoleSuperAdmin {
			want = OutcomeAllow
		}
		assert.Equal(t, want, decide(g, "/settings/system").Outcome, role)
		assert.Equal(t, want, decide(g, "/settings/journal").Outcome, role)
	}
}

func TestGuardGestionnaireReachesEngagements(t *testing.T) {
	g, _, _ := newTestGuard(as(RoleGestionnaire))
	d := decide(g, "/finances/engagements")
	assert.Equal(t, OutcomeAllow, d.Outcome)
	require.NotNil(t, d.Principal)
	assert.Equal(t, RoleGestionnaire, d.Principal.Role)
}

func TestGuardFinanceGroup(t *testing.T) {
	cases := map[Role]Outcome{
		RoleSuperAdmin:   OutcomeAllow,
		RoleAdmin:        OutcomeAllow,
		RoleGestionnaire: OutcomeAllow,
		RoleTresorier:    OutcomeAllow,
		RoleSecretaire:   OutcomeRedirectHome,
	}
	for role, want := range cases {
		g, _, _ := newTestGuard(as(role))
		assert.Equal(t, want, decide(g, "/finances").Outcome, role)
		assert.Equal(t, want, decide(g, "/rapports").Outcome, role)
	}
}

func TestGuardRulesAreANDed(t *testing.T) {
	// TRESORIER passes the finance group rule but lacks view-engagements.
	g, _, _ := newTestGuard(as(RoleTresorier))
	d := decide(g, "/finances/engagements")
	assert.Equal(t, OutcomeRedirectHome, d.Outcome)
	require.NotNil(t, d.Rule)
	assert.Equal(t, "/finances/engagements", d.Rule.Prefix)

	assert.Equal(t, OutcomeAllow, decide(g, "/finances/versements").Outcome)
	assert.Equal(t, OutcomeAllow, decide(g, "/finances/offrandes/new").Outcome)
}

func TestGuardPrefixMatchingIsSegmentAware(t *testing.T) {
	g, _, _ := newTestGuard(as(RoleSecretaire))
	assert.Equal(t, OutcomeAllow, decide(g, "/financesX").Outcome)
	assert.Equal(t, OutcomeRedirectHome, decide(g, "/finances/").Outcome)
}

func TestGuardResolverErrorIsUnauthenticated(t *testing.T) {
	g, _, logs := newTestGuard(staticResolver(&Principal{ID: 1, Role: RoleSuperAdmin}, errors.New("redis down")))
	d := decide(g, "/paroissiens")
	assert.Equal(t, OutcomeRedirectLogin, d.Outcome)
	assert.Nil(t, d.Principal)
	assert.Contains(t, logs.String(), "redis down")
}

func TestGuardUnknownRoleIsUnauthorized(t *testing.T) {
	g, _, logs := newTestGuard(as("PASTEUR"))
	assert.Equal(t, OutcomeRedirectHome, decide(g, "/paroissiens").Outcome)
	assert.Contains(t, logs.String(), "rbac unknown role")

	// Home carries no rule, so an unknown role is not trapped in a loop.
	assert.Equal(t, OutcomeAllow, decide(g, "/").Outcome)
}

func TestGuardDoesNotRecheckActiveFlag(t *testing.T) {
	g, _, _ := newTestGuard(staticResolver(&Principal{ID: 3, Role: RoleAdmin, IsActive: false}, nil))
	assert.Equal(t, OutcomeAllow, decide(g, "/paroissiens").Outcome)
}

func TestGuardMiddleware(t *testing.T) {
	var seen *Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("allow stores principal", func(t *testing.T) {
		g, rec, _ := newTestGuard(as(RoleSecretaire))
		rr := httptest.NewRecorder()
		g.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/paroissiens", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		require.NotNil(t, seen)
		assert.Equal(t, RoleSecretaire, seen.Role)
		assert.Equal(t, []string{"allow"}, rec.outcomes)
	})

	t.Run("redirect login", func(t *testing.T) {
		g, rec, _ := newTestGuard(staticResolver(nil, nil))
		rr := httptest.NewRecorder()
		g.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/associations", nil))
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/login?callbackUrl=/associations", rr.Header().Get("Location"))
		assert.Equal(t, []string{"redirect_login"}, rec.outcomes)
	})

	t.Run("excluded paths bypass the guard", func(t *testing.T) {
		g, rec, _ := newTestGuard(staticResolver(nil, nil))
		for _, path := range []string{"/static/css/app.css", "/favicon.ico", "/images/logo.png", "/healthz", "/metrics"} {
			rr := httptest.NewRecorder()
			g.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusNoContent, rr.Code, path)
		}
		assert.Empty(t, rec.outcomes)
	})
}

func TestSafeCallback(t *testing.T) {
	cases := map[string]string{
		"/paroissiens":           "/paroissiens",
		"/finances?year=2024":    "/finances?year=2024",
		"":                       "/",
		"https://evil.example":   "/",
		"//evil.example/path":    "/",
		"/\\evil.example":        "/",
		"javascript:alert(1)":    "/",
		"paroissiens":            "/",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeCallback(in, "/"), in)
	}
}
