package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
)

func newSessions(t *testing.T) *shared.SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, "paroisse_session", time.Hour, false)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionMiddlewarePersistsAcrossRequests(t *testing.T) {
	sessions := newSessions(t)
	mw := SessionMiddleware(sessions, quietLogger())

	write := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shared.SessionFromContext(r.Context()).Set("greeting", "bonjour")
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}))
	rr := httptest.NewRecorder()
	write.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "paroisse_session", cookies[0].Name)

	var got string
	read := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.SessionFromContext(r.Context()).Get("greeting")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	read.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "bonjour", got)
}

func TestCSRFMiddleware(t *testing.T) {
	csrf := shared.NewCSRFManager("secret")
	sess := shared.NewSessionManager(nil, "test", time.Hour, false).NewSession()
	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)

	handler := CSRFMiddleware(csrf, quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	post := func(form url.Values) int {
		req := httptest.NewRequest(http.MethodPost, "/paroissiens", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusForbidden, post(url.Values{}))
	assert.Equal(t, http.StatusForbidden, post(url.Values{shared.CSRFFormField: {"forged"}}))
	assert.Equal(t, http.StatusNoContent, post(url.Values{shared.CSRFFormField: {token}}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/paroissiens", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestChromeFiltersNavigation(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC) }
	chrome := Chrome(rbac.DefaultMatrix(), rbac.DefaultRouteTable(), now)

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, chrome(anon).Nav)

	sess := shared.NewSessionManager(nil, "test", time.Hour, false).NewSession()
	req := httptest.NewRequest(http.MethodGet, "/finances/versements/new", nil)
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = rbac.ContextWithPrincipal(ctx, &rbac.Principal{ID: 4, Name: "Marie", Email: "marie@example.org", Role: rbac.RoleTresorier})
	layout := chrome(req.WithContext(ctx))

	assert.Equal(t, "Marie", layout.UserName)
	assert.Equal(t, "Trésorier", layout.RoleLabel)
	assert.NotEmpty(t, layout.FiscalLabel)

	var finances bool
	for _, link := range layout.Nav {
		assert.NotEqual(t, "Associations", link.Title)
		if link.Title == "Finances" {
			finances = true
			assert.True(t, link.Active)
			require.Len(t, link.Children, 2)
			assert.True(t, link.Children[0].Active)
			assert.False(t, link.Children[1].Active)
		}
		if link.Title == "Tableau de bord" {
			assert.False(t, link.Active)
		}
	}
	assert.True(t, finances)
}
