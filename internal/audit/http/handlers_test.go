package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/audit"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
	calls       int
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.calls++
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.calls++
	s.lastFilters = filters
	return s.exportRows, nil
}

func newAuditHandler(t *testing.T, service *stubTimelineService) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	handler := NewHandler(nil, service, view.NewPage(templates, nil, nil), rbac.Middleware{Matrix: rbac.DefaultMatrix()})
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC) }
	return handler
}

func withPrincipal(req *http.Request, role rbac.Role) *http.Request {
	sess := shared.NewSessionManager(nil, "test", time.Hour, false).NewSession()
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = rbac.ContextWithPrincipal(ctx, &rbac.Principal{ID: 7, Name: "Admin", Role: role, IsActive: true})
	return req.WithContext(ctx)
}

func TestParseFiltersDefaults(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{})
	filters, err := handler.parseFilters(httptest.NewRequest(http.MethodGet, "/settings/journal", nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := filters.To.Format(dateLayout); got != "2024-03-15" {
		t.Fatalf("expected to=2024-03-15, got %s", got)
	}
	if got := filters.From.Format(dateLayout); got != "2024-03-08" {
		t.Fatalf("expected from=2024-03-08, got %s", got)
	}
	if filters.Page != 1 || filters.PageSize != defaultPageSize {
		t.Fatalf("unexpected paging: %+v", filters)
	}
}

func TestParseFiltersRejectsBadInput(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{})
	cases := map[string]string{
		"?from=2024-03-10&to=2024-03-01": "range",
		"?from=2023-01-01&to=2024-03-01": "range",
		"?from=03/01/2024":               "from",
		"?to=hier":                       "to",
		"?page=0":                        "page",
		"?page_size=abc":                 "page_size",
	}
	for query, field := range cases {
		_, err := handler.parseFilters(httptest.NewRequest(http.MethodGet, "/settings/journal"+query, nil))
		v, ok := err.(validationError)
		if !ok {
			t.Fatalf("%s: expected validation error, got %v", query, err)
		}
		if v.field != field {
			t.Fatalf("%s: expected field %s, got %s", query, field, v.field)
		}
	}
}

func TestParseFiltersCapsPageSize(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{})
	filters, err := handler.parseFilters(httptest.NewRequest(http.MethodGet, "/settings/journal?page=3&page_size=500&actor=+marie+", nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if filters.PageSize != maxPageSize || filters.Page != 3 || filters.Actor != "marie" {
		t.Fatalf("unexpected filters: %+v", filters)
	}
}

func TestTimelineRendersRows(t *testing.T) {
	rows := []audit.TimelineRow{{At: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), ActorName: "Marie Trésor", Action: shared.AuditUpdate, Entity: "versement", EntityID: "41"}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20, HasNext: true, NextPage: 2}}}
	handler := newAuditHandler(t, service)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/settings/journal?from=2024-03-01&to=2024-03-15", nil), rbac.RoleSuperAdmin)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Marie Trésor", "Modification", "/finances/versements/41", "page=2"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in response", want)
		}
	}
	if service.lastFilters.From.Format(dateLayout) != "2024-03-01" {
		t.Fatalf("unexpected filters: %+v", service.lastFilters)
	}
}

func TestTimelineInvalidRangeRendersMessage(t *testing.T) {
	service := &stubTimelineService{}
	handler := newAuditHandler(t, service)
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/settings/journal?from=2024-03-20&to=2024-03-01", nil), rbac.RoleSuperAdmin)
	rr := httptest.NewRecorder()
	handler.handleTimeline(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be called on invalid filters")
	}
	if !strings.Contains(rr.Body.String(), "90 jours") {
		t.Fatalf("expected range message")
	}
}

func TestExportCSV(t *testing.T) {
	rows := []audit.TimelineRow{{At: time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), ActorName: "Paul", Email: "paul@paroisse.local", Action: shared.AuditCreate, Entity: "offrande", EntityID: "3"}}
	service := &stubTimelineService{exportRows: rows}
	handler := newAuditHandler(t, service)
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/settings/journal/export.csv?from=2024-03-01&to=2024-03-05", nil), rbac.RoleSuperAdmin)
	rr := httptest.NewRecorder()
	handler.handleExport(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	if disp := rr.Header().Get("Content-Disposition"); !strings.Contains(disp, "journal-2024-03-01_2024-03-05.csv") {
		t.Fatalf("unexpected disposition: %s", disp)
	}
	if !strings.Contains(rr.Body.String(), "2024-03-02 08:00:00,Paul,paul@paroisse.local,Création,Offrande,3,") {
		t.Fatalf("unexpected csv: %s", rr.Body.String())
	}
}

func TestRoutesRequireSystemPermission(t *testing.T) {
	service := &stubTimelineService{}
	handler := newAuditHandler(t, service)
	router := chi.NewRouter()
	router.Route("/settings/journal", handler.MountRoutes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/settings/journal", nil), rbac.RoleAdmin))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 for admin, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/settings/journal", nil), rbac.RoleSuperAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for super admin, got %d", rr.Code)
	}
}

func TestExportIsRateLimitedPerUser(t *testing.T) {
	handler := newAuditHandler(t, &stubTimelineService{})
	router := chi.NewRouter()
	router.Route("/settings/journal", handler.MountRoutes)

	var last int
	for i := 0; i <= rateLimit; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/settings/journal/export.csv", nil), rbac.RoleSuperAdmin))
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d exports, got %d", rateLimit, last)
	}
}
