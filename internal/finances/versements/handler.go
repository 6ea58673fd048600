package versements

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
	"github.com/paroisse/paroisse/internal/finances/engagements"
	"github.com/paroisse/paroisse/internal/paroissiens"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// ParoissienOptions lists payers.
type ParoissienOptions interface {
	Options(ctx context.Context) ([]paroissiens.Option, error)
}

// EngagementOptions lists the engagements a versement can credit.
type EngagementOptions interface {
	Options(ctx context.Context, paroissienID int64) ([]engagements.Option, error)
}

// Handler serves /finances/versements.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	paroissiens ParoissienOptions
	engagements EngagementOptions
	page        view.Page
	rbac        rbac.Middleware
	now         func() time.Time
}

// NewHandler builds the versement handler.
func NewHandler(logger *slog.Logger, service *Service, paroissiens ParoissienOptions, engagements EngagementOptions, page view.Page, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, paroissiens: paroissiens, engagements: engagements, page: page, rbac: rbac, now: time.Now}
}

// MountRoutes registers versement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewVersements))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)

		r.With(h.rbac.RequireAny(rbac.PermCreateVersements)).Get("/new", h.newForm)
		r.With(h.rbac.RequireAny(rbac.PermCreateVersements)).Post("/", h.create)

		r.With(h.rbac.RequireAny(rbac.PermEditVersements)).Get("/{id}/edit", h.editForm)
		r.With(h.rbac.RequireAny(rbac.PermEditVersements)).Post("/{id}", h.update)

		r.With(h.rbac.RequireAny(rbac.PermDeleteVersements)).Post("/{id}/delete", h.delete)
	})
}

type permissions struct {
	Create         bool
	Edit           bool
	Delete         bool
	ViewEngagement bool
}

func (h *Handler) can(r *http.Request) permissions {
	return permissions{
		Create:         h.rbac.Can(r, rbac.PermCreateVersements),
		Edit:           h.rbac.Can(r, rbac.PermEditVersements),
		Delete:         h.rbac.Can(r, rbac.PermDeleteVersements),
		ViewEngagement: h.rbac.Can(r, rbac.PermViewEngagements),
	}
}

type listPage struct {
	Page       Page
	Pagination shared.Pagination
	Filters    ListFilters
	Types      []finances.VersementType
	Years      []int
	Query      url.Values
	Can        permissions
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		ListParams:   finances.NewestFirst(r, shared.ParseListParams(r, "date")),
		Period:       finances.PeriodFromRequest(r, h.now()),
		ParoissienID: shared.QueryInt64(r, "paroissien"),
		EngagementID: shared.QueryInt64(r, "engagement"),
	}
	if t := finances.VersementType(r.URL.Query().Get("type")); t.Valid() {
		filters.Type = t
	}
	page, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/finances/versements/list.html", "Versements", listPage{
		Page:       page,
		Pagination: pagination,
		Filters:    filters,
		Types:      finances.VersementTypes,
		Years:      shared.YearOptions(h.now()),
		Query:      r.URL.Query(),
		Can:        h.can(r),
	})
}

type detailPage struct {
	Versement Versement
	Can       permissions
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/finances/versements/detail.html", "Versement", detailPage{Versement: v, Can: h.can(r)})
}

type formPage struct {
	ID          int64
	Form        Form
	Errors      shared.FormErrors
	Types       []finances.VersementType
	Paroissiens []paroissiens.Option
	Engagements []engagements.Option
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, data formPage) {
	var err error
	if data.Paroissiens, err = h.paroissiens.Options(r.Context()); err != nil {
		h.page.Error(w, r, err)
		return
	}
	if data.Engagements, err = h.engagements.Options(r.Context(), data.Form.ParoissienID); err != nil {
		h.page.Error(w, r, err)
		return
	}
	data.Types = finances.VersementTypes
	title := "Nouveau versement"
	if data.ID > 0 {
		title = "Modifier le versement"
	}
	h.page.Render(w, r, status, "pages/finances/versements/form.html", title, data)
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	form := DefaultForm(h.now())
	form.ParoissienID = shared.QueryInt64(r, "paroissien")
	form.EngagementID = shared.QueryInt64(r, "engagement")
	h.renderForm(w, r, http.StatusOK, formPage{Form: form})
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	v, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, formPage{ID: id, Form: FormFrom(v)})
}

func parseForm(r *http.Request) (Form, error) {
	if err := r.ParseForm(); err != nil {
		return Form{}, err
	}
	return Form{
		ParoissienID:  shared.FormInt64(r, "paroissien_id"),
		EngagementID:  shared.FormInt64(r, "engagement_id"),
		Type:          r.PostFormValue("type"),
		Somme:         shared.FormInt64(r, "somme"),
		DateVersement: shared.FormDate(r, "date_versement"),
		Reference:     r.PostFormValue("reference"),
		Notes:         r.PostFormValue("notes"),
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
	h.page.RedirectWithFlash(w, r, "/finances/versements/"+strconv.FormatInt(created.ID, 10), "success", "Versement enregistré")
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
	h.page.RedirectWithFlash(w, r, "/finances/versements/"+strconv.FormatInt(id, 10), "success", "Versement mis à jour")
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
		h.page.Fail(w, r, "/finances/versements/"+strconv.FormatInt(id, 10), err)
		return
	}
	h.page.RedirectWithFlash(w, r, "/finances/versements", "success", "Versement supprimé")
}
