package finances

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// Overview is the /finances landing page content.
type Overview struct {
	Period shared.FiscalPeriod
	Totals Totals
	ByType []TypeTotal
}

// Outstanding is what remains pledged but not yet received.
func (o Overview) Outstanding() int64 {
	if rest := o.Totals.Pledged - o.Totals.Received; rest > 0 {
		return rest
	}
	return 0
}

// OverviewService aggregates the overview.
type OverviewService struct {
	stats StatsRepository
}

// NewOverviewService constructs the service.
func NewOverviewService(stats StatsRepository) *OverviewService {
	return &OverviewService{stats: stats}
}

// Load runs the period aggregates concurrently.
func (s *OverviewService) Load(ctx context.Context, period shared.FiscalPeriod) (Overview, error) {
	start, end := period.Range()
	out := Overview{Period: period}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Totals, err = s.stats.Totals(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		out.ByType, err = s.stats.ByType(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

// OverviewHandler serves /finances.
type OverviewHandler struct {
	logger  *slog.Logger
	service *OverviewService
	page    view.Page
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewOverviewHandler builds the handler.
func NewOverviewHandler(logger *slog.Logger, service *OverviewService, page view.Page, rbac rbac.Middleware) *OverviewHandler {
	return &OverviewHandler{logger: logger, service: service, page: page, rbac: rbac, now: time.Now}
}

// MountRoutes registers the overview on the finance group root.
func (h *OverviewHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(rbac.PermAccessFinances)).Get("/", h.show)
}

type overviewPage struct {
	Overview Overview
	Years    []int
	Can      struct {
		Engagements bool
		Versements  bool
		Offrandes   bool
	}
}

func (h *OverviewHandler) show(w http.ResponseWriter, r *http.Request) {
	period := PeriodFromRequest(r, h.now())
	overview, err := h.service.Load(r.Context(), period)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	data := overviewPage{Overview: overview, Years: shared.YearOptions(h.now())}
	data.Can.Engagements = h.rbac.Can(r, rbac.PermViewEngagements)
	data.Can.Versements = h.rbac.Can(r, rbac.PermViewVersements)
	data.Can.Offrandes = h.rbac.Can(r, rbac.PermViewOffrandes)
	h.page.Render(w, r, http.StatusOK, "pages/finances/index.html", "Finances "+period.Label(), data)
}
