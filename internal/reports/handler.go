package reports

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// Handler serves /rapports.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pdf     *PDFClient
	page    view.Page
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler builds the handler. pdf may be nil.
func NewHandler(logger *slog.Logger, service *Service, pdf *PDFClient, page view.Page, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, pdf: pdf, page: page, rbac: rbac, now: time.Now}
}

// MountRoutes registers the report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewReports))
		r.Get("/", h.index)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermExportData))
			r.Get("/versements.csv", h.versementsCSV)
			r.Get("/offrandes.csv", h.offrandesCSV)
			r.Get("/rapport.pdf", h.pdfReport)
		})
	})
}

type indexPage struct {
	Report    Report
	Chart     template.HTML
	Period    shared.FiscalPeriod
	Years     []int
	CanExport bool
	PDF       bool
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	period := finances.PeriodFromRequest(r, h.now())
	report, err := h.service.Build(r.Context(), period.Year)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	chart, err := CumulativeChart(report.Monthly)
	if err != nil {
		h.logger.Warn("report chart", slog.Any("error", err))
	}
	data := indexPage{
		Report:    report,
		Chart:     chart,
		Period:    period,
		Years:     shared.YearOptions(h.now()),
		CanExport: h.rbac.Can(r, rbac.PermExportData),
		PDF:       h.pdf.Enabled(),
	}
	h.page.Render(w, r, http.StatusOK, "pages/rapports/index.html", fmt.Sprintf("Rapports %d", period.Year), data)
}

func (h *Handler) versementsCSV(w http.ResponseWriter, r *http.Request) {
	period := finances.PeriodFromRequest(r, h.now())
	rows, err := h.service.Versements(r.Context(), period)
	if err != nil {
		h.page.Fail(w, r, "/rapports", err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", "versements-"+fileSuffix(period)+".csv")
	if err := WriteVersementsCSV(w, rows); err != nil {
		h.logger.Error("write versements csv", slog.Any("error", err))
	}
}

func (h *Handler) offrandesCSV(w http.ResponseWriter, r *http.Request) {
	period := finances.PeriodFromRequest(r, h.now())
	rows, err := h.service.Offrandes(r.Context(), period)
	if err != nil {
		h.page.Fail(w, r, "/rapports", err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", "offrandes-"+fileSuffix(period)+".csv")
	if err := WriteOffrandesCSV(w, rows); err != nil {
		h.logger.Error("write offrandes csv", slog.Any("error", err))
	}
}

func (h *Handler) pdfReport(w http.ResponseWriter, r *http.Request) {
	if !h.pdf.Enabled() {
		h.page.RedirectWithFlash(w, r, "/rapports", "warning", "L'export PDF n'est pas configuré.")
		return
	}
	period := finances.PeriodFromRequest(r, h.now())
	report, err := h.service.Build(r.Context(), period.Year)
	if err != nil {
		h.page.Fail(w, r, "/rapports", err)
		return
	}
	html, err := PrintableHTML(report)
	if err != nil {
		h.page.Fail(w, r, "/rapports", err)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render report pdf", slog.Any("error", err))
		h.page.RedirectWithFlash(w, r, "/rapports", "danger", "La génération du PDF a échoué.")
		return
	}
	attachment(w, "application/pdf", fmt.Sprintf("rapport-%d.pdf", period.Year))
	_, _ = w.Write(pdf)
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

func fileSuffix(p shared.FiscalPeriod) string {
	if p.Quarter == 0 {
		return fmt.Sprintf("%d", p.Year)
	}
	return fmt.Sprintf("%d-T%d", p.Year, p.Quarter)
}
