package perf

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/rbac"
)

// Every request goes through the guard, so its decision must stay far below
// the page budget.
const guardBudget = 5 * time.Millisecond

func newGuard() *rbac.Guard {
	principal := &rbac.Principal{ID: 1, Name: "Trésorier", Role: rbac.RoleTresorier, IsActive: true}
	resolver := rbac.PrincipalResolverFunc(func(*http.Request) (*rbac.Principal, error) { return principal, nil })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return rbac.NewGuard(rbac.DefaultMatrix(), rbac.DefaultRouteTable(), resolver, logger, nil)
}

func TestGuardLatencyTarget(t *testing.T) {
	g := newGuard()
	paths := []string{"/", "/paroissiens", "/finances/versements", "/finances/engagements", "/settings/users", "/rapports"}

	samples := make([]time.Duration, 0, 600)
	for i := 0; i < 100; i++ {
		for _, path := range paths {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			start := time.Now()
			g.Decide(req)
			samples = append(samples, time.Since(start))
		}
	}

	if p95 := percentile95(samples); p95 > guardBudget {
		t.Fatalf("guard latency regression: p95=%s threshold=%s", p95, guardBudget)
	}
}

func TestPercentile95(t *testing.T) {
	samples := []time.Duration{9, 1, 8, 2, 7, 3, 6, 4, 5, 10}
	if got := percentile95(samples); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
	if got := percentile95(nil); got != 0 {
		t.Fatalf("expected 0 for no samples, got %d", got)
	}
}

func BenchmarkGuardDecide(b *testing.B) {
	g := newGuard()
	req := httptest.NewRequest(http.MethodGet, "/finances/versements/42", nil)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g.Decide(req)
	}
}

func BenchmarkPlanAdjustments(b *testing.B) {
	before := &finances.Effect{EngagementID: 7, Type: finances.TypeDime, Somme: 15000}
	after := &finances.Effect{EngagementID: 3, Type: finances.TypeDetteCotisation, Somme: 12000}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		finances.PlanAdjustments(before, after)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
