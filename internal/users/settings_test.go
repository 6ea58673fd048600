package users

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

func settingsRequest(method, target string, body url.Values, role rbac.Role) (*http.Request, *shared.Session) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	sess := shared.NewSessionManager(nil, "test", time.Hour, false).NewSession()
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = rbac.ContextWithPrincipal(ctx, &rbac.Principal{ID: 1, Role: role, IsActive: true})
	return req.WithContext(ctx), sess
}

func newSettings(probes ...Probe) *SettingsHandler {
	h := NewSettingsHandler(view.Page{}, rbac.Middleware{Matrix: rbac.DefaultMatrix()}, "test", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), probes...)
	h.now = func() time.Time { return time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC) }
	return h
}

func TestSaveFiscalStoresPeriodInSession(t *testing.T) {
	h := newSettings()
	req, sess := settingsRequest(http.MethodPost, "/settings/fiscal", url.Values{"year": {"2023"}, "quarter": {"2"}}, rbac.RoleTresorier)
	rr := httptest.NewRecorder()
	h.saveFiscal(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, shared.FiscalPeriod{Year: 2023, Quarter: 2}, shared.FiscalPeriodFromSession(sess, time.Now()))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)
}

func TestSaveFiscalRejectsInvalidPeriod(t *testing.T) {
	h := newSettings()
	req, sess := settingsRequest(http.MethodPost, "/settings/fiscal", url.Values{"year": {"1850"}}, rbac.RoleTresorier)
	rr := httptest.NewRecorder()
	h.saveFiscal(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "danger", flash.Kind)
	assert.Equal(t, time.Now().Year(), shared.FiscalPeriodFromSession(sess, time.Now()).Year)
}

func TestLinksFollowPermissions(t *testing.T) {
	h := newSettings()
	hrefs := func(role rbac.Role) []string {
		req, _ := settingsRequest(http.MethodGet, "/settings", nil, role)
		var out []string
		for _, l := range h.Links(req) {
			out = append(out, l.Href)
		}
		return out
	}
	assert.Equal(t, []string{"/settings/fiscal"}, hrefs(rbac.RoleSecretaire))
	assert.Equal(t, []string{"/settings/fiscal", "/settings/users"}, hrefs(rbac.RoleAdmin))
	assert.Len(t, hrefs(rbac.RoleSuperAdmin), 6)
	assert.Contains(t, hrefs(rbac.RoleSuperAdmin), "/settings/journal")
}

func TestSystemInfoRunsProbes(t *testing.T) {
	h := newSettings(
		Probe{Name: "PostgreSQL", Ping: func(context.Context) error { return nil }},
		Probe{Name: "Redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)
	info := h.SystemInfo(context.Background())
	assert.Equal(t, "test", info.Env)
	assert.Equal(t, 150*time.Minute, info.Uptime)
	require.Len(t, info.Checks, 2)
	assert.Equal(t, Check{Name: "PostgreSQL", OK: true, Detail: "OK"}, info.Checks[0])
	assert.False(t, info.Checks[1].OK)
	assert.Equal(t, "connection refused", info.Checks[1].Detail)
}
