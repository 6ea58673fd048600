package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paroisse/paroisse/internal/audit"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/view"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
	dateLayout        = "2006-01-02"
	journalTemplate   = "pages/settings/journal.html"
	journalTitle      = "Journal d'activité"
)

// TimelineService is the read side the handler needs.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Handler serves /settings/journal.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	page    view.Page
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler builds the journal handler.
func NewHandler(logger *slog.Logger, service TimelineService, page view.Page, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, page: page, rbac: rbac, now: time.Now}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		var v validationError
		if !errors.As(err, &v) {
			h.page.Error(w, r, err)
			return
		}
		vm := h.buildViewModel(r, filters, audit.Result{Paging: audit.PagingInfo{Page: 1}})
		vm.Error = v.Message()
		h.page.Render(w, r, http.StatusUnprocessableEntity, journalTemplate, journalTitle, vm)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, journalTemplate, journalTitle, h.buildViewModel(r, filters, result))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		var v validationError
		if errors.As(err, &v) {
			h.page.RedirectWithFlash(w, r, "/settings/journal", "danger", v.Message())
			return
		}
		h.page.Error(w, r, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.page.Fail(w, r, "/settings/journal", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="journal-`+filters.From.Format(dateLayout)+"_"+filters.To.Format(dateLayout)+`.csv"`)
	if err := audit.WriteCSV(w, rows); err != nil {
		h.logger.Warn("write journal csv", slog.Any("error", err))
	}
}

// parseFilters reads the query string. Without dates it covers the last
// seven days up to today. On error the returned filters still carry the
// defaults so the page can render.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	today := h.now().UTC().Truncate(24 * time.Hour)
	filters := audit.TimelineFilters{
		From:     today.Add(-defaultDateRange),
		To:       today,
		Actor:    strings.TrimSpace(q.Get("actor")),
		Entity:   strings.TrimSpace(q.Get("entity")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     1,
		PageSize: defaultPageSize,
	}

	to := filters.To
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return filters, validationError{field: "to"}
		}
		to = parsed
	}
	from := to.Add(-defaultDateRange)
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse(dateLayout, v)
		if err != nil {
			return filters, validationError{field: "from"}
		}
		from = parsed
	}
	if from.After(to) || to.Sub(from) > maxDateRangeHours*time.Hour {
		return filters, validationError{field: "range"}
	}
	filters.From, filters.To = from, to

	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return filters, validationError{field: "page"}
		}
		filters.Page = parsed
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return filters, validationError{field: "page_size"}
		}
		filters.PageSize = min(parsed, maxPageSize)
	}
	return filters, nil
}

func (h *Handler) buildViewModel(r *http.Request, filters audit.TimelineFilters, result audit.Result) audit.ViewModel {
	lines := make([]audit.Line, 0, len(result.Rows))
	for _, row := range result.Rows {
		lines = append(lines, row.Line())
	}
	return audit.ViewModel{
		Filters: audit.FiltersViewModel{
			From:   filters.From,
			To:     filters.To,
			Actor:  filters.Actor,
			Entity: filters.Entity,
			Action: filters.Action,
		},
		Lines:    lines,
		Paging:   result.Paging,
		Query:    r.URL.Query(),
		Entities: audit.Entities,
		Actions:  audit.Actions,
	}
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}

// Message is the French explanation shown above the filters.
func (v validationError) Message() string {
	switch v.field {
	case "from", "to":
		return "Date invalide, utilisez le format AAAA-MM-JJ."
	case "range":
		return "La période doit être ordonnée et ne pas dépasser 90 jours."
	default:
		return "Pagination invalide."
	}
}
