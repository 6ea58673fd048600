package dashboard

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/paroisse/paroisse/internal/audit"
	"github.com/paroisse/paroisse/internal/charts"
	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// Handler serves the home dashboard.
type Handler struct {
	logger  *slog.Logger
	service *Service
	page    view.Page
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler builds the dashboard handler.
func NewHandler(logger *slog.Logger, service *Service, page view.Page, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, page: page, rbac: rbac, now: time.Now}
}

// MountRoutes registers the dashboard at the root of r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
}

type pageData struct {
	Summary     Summary
	Finance     *FinanceSummary
	Chart       template.HTML
	Activity    []audit.Line
	Years       []int
	Year        int
	ShowFinance bool
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	year := finances.PeriodFromRequest(r, h.now()).Year
	data := pageData{
		Year:        year,
		Years:       shared.YearOptions(h.now()),
		ShowFinance: h.rbac.Can(r, rbac.PermAccessFinances),
	}

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		data.Summary, err = h.service.Summary(ctx)
		return err
	})
	g.Go(func() error {
		logs, err := h.service.Activity(ctx)
		data.Activity = audit.Lines(logs)
		return err
	})
	if data.ShowFinance {
		g.Go(func() error {
			fin, err := h.service.Finance(ctx, year)
			if err != nil {
				return err
			}
			data.Finance = &fin
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.page.Error(w, r, err)
		return
	}

	if data.Finance != nil {
		chart, err := MonthlyChart(data.Finance.Monthly, year)
		if err != nil {
			h.logger.Warn("dashboard chart", slog.Any("error", err))
		}
		data.Chart = chart
	}
	h.page.Render(w, r, http.StatusOK, "pages/dashboard.html", "Tableau de bord", data)
}

// MonthlyChart draws versements against offrandes for each month of year.
func MonthlyChart(months []finances.MonthTotal, year int) (template.HTML, error) {
	if len(months) == 0 {
		months = finances.EmptyMonths()
	}
	labels := make([]string, len(months))
	versements := make([]int64, len(months))
	offrandes := make([]int64, len(months))
	for i, m := range months {
		labels[i] = m.Label
		versements[i] = m.Versements
		offrandes[i] = m.Offrandes
	}
	return charts.Bars(labels, []charts.Series{
		{Name: "Versements", Values: versements},
		{Name: "Offrandes", Values: offrandes},
	}, charts.Options{
		Title:       "Recettes mensuelles",
		Description: "Versements et offrandes par mois en " + strconv.Itoa(year),
	})
}
