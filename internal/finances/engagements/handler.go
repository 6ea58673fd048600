package engagements

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/paroissiens"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// ParoissienOptions lists the members an engagement can belong to.
type ParoissienOptions interface {
	Options(ctx context.Context) ([]paroissiens.Option, error)
}

// Handler serves /finances/engagements.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	paroissiens ParoissienOptions
	page        view.Page
	rbac        rbac.Middleware
	now         func() time.Time
}

// NewHandler builds the engagement handler.
func NewHandler(logger *slog.Logger, service *Service, paroissiens ParoissienOptions, page view.Page, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, paroissiens: paroissiens, page: page, rbac: rbac, now: time.Now}
}

// MountRoutes registers engagement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewEngagements))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)

		r.With(h.rbac.RequireAny(rbac.PermCreateEngagements)).Get("/new", h.newForm)
		r.With(h.rbac.RequireAny(rbac.PermCreateEngagements)).Post("/", h.create)

		r.With(h.rbac.RequireAny(rbac.PermEditEngagements)).Get("/{id}/edit", h.editForm)
		r.With(h.rbac.RequireAny(rbac.PermEditEngagements)).Post("/{id}", h.update)

		r.With(h.rbac.RequireAny(rbac.PermDeleteEngagements)).Post("/{id}/delete", h.delete)
	})
}

type permissions struct {
	Create          bool
	Edit            bool
	Delete          bool
	CreateVersement bool
}

func (h *Handler) can(r *http.Request) permissions {
	return permissions{
		Create:          h.rbac.Can(r, rbac.PermCreateEngagements),
		Edit:            h.rbac.Can(r, rbac.PermEditEngagements),
		Delete:          h.rbac.Can(r, rbac.PermDeleteEngagements),
		CreateVersement: h.rbac.Can(r, rbac.PermCreateVersements),
	}
}

type listPage struct {
	Items      []Engagement
	Pagination shared.Pagination
	Filters    ListFilters
	Years      []int
	Query      url.Values
	Can        permissions
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		ListParams:   finances.NewestFirst(r, shared.ParseListParams(r, "periode")),
		Period:       finances.PeriodFromRequest(r, h.now()),
		ParoissienID: shared.QueryInt64(r, "paroissien"),
	}
	items, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/finances/engagements/list.html", "Engagements", listPage{
		Items:      items,
		Pagination: pagination,
		Filters:    filters,
		Years:      shared.YearOptions(h.now()),
		Query:      r.URL.Query(),
		Can:        h.can(r),
	})
}

type detailPage struct {
	Engagement Engagement
	Versements []VersementLine
	Can        permissions
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	e, lines, err := h.service.Detail(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/finances/engagements/detail.html", "Engagement de "+e.ParoissienName,
		detailPage{Engagement: e, Versements: lines, Can: h.can(r)})
}

type formPage struct {
	ID          int64
	Form        Form
	Errors      shared.FormErrors
	Paroissiens []paroissiens.Option
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, data formPage) {
	opts, err := h.paroissiens.Options(r.Context())
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	data.Paroissiens = opts
	title := "Nouvel engagement"
	if data.ID > 0 {
		title = "Modifier l'engagement"
	}
	h.page.Render(w, r, status, "pages/finances/engagements/form.html", title, data)
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	form := DefaultForm(finances.PeriodFromRequest(r, h.now()).Year)
	form.ParoissienID = shared.QueryInt64(r, "paroissien")
	h.renderForm(w, r, http.StatusOK, formPage{Form: form})
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	e, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, formPage{ID: id, Form: FormFrom(e)})
}

func parseForm(r *http.Request) (Form, error) {
	if err := r.ParseForm(); err != nil {
		return Form{}, err
	}
	return Form{
		ParoissienID:    shared.FormInt64(r, "paroissien_id"),
		Dime:            shared.FormInt64(r, "dime"),
		Cotisation:      shared.FormInt64(r, "cotisation"),
		DetteDime:       shared.FormInt64(r, "dette_dime"),
		DetteCotisation: shared.FormInt64(r, "dette_cotisation"),
		PeriodeStart:    shared.FormDate(r, "periode_start"),
		PeriodeEnd:      shared.FormDate(r, "periode_end"),
		Notes:           r.PostFormValue("notes"),
	}, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	form, err := parseForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	created, err := h.service.Create(r.Context(), rbac.ActorID(r.Context()), form)
	if err != nil {
		h.formError(w, r, formPage{Form: form}, err)
		return
	}
	h.page.RedirectWithFlash(w, r, "/finances/engagements/"+strconv.FormatInt(created.ID, 10), "success", "Engagement créé")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	form, err := parseForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.service.Update(r.Context(), rbac.ActorID(r.Context()), id, form); err != nil {
		h.formError(w, r, formPage{ID: id, Form: form}, err)
		return
	}
	h.page.RedirectWithFlash(w, r, "/finances/engagements/"+strconv.FormatInt(id, 10), "success", "Engagement mis à jour")
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, data formPage, err error) {
	data.Errors = shared.FieldErrors(err)
	if data.Errors == nil {
		if !errors.Is(err, shared.ErrConflict) {
			h.page.Error(w, r, err)
			return
		}
		data.Errors = shared.FormErrors{"general": shared.UserSafeMessage(err)}
	}
	h.renderForm(w, r, http.StatusUnprocessableEntity, data)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		h.page.Fail(w, r, "/finances/engagements/"+strconv.FormatInt(id, 10), err)
		return
	}
	h.page.RedirectWithFlash(w, r, "/finances/engagements", "success", "Engagement supprimé")
}
