package offrandes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/associations"
	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// AssociationOptions lists the associations an offering can be filed under.
type AssociationOptions interface {
	Options(ctx context.Context) ([]associations.Option, error)
}

// Handler serves /finances/offrandes.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	associations AssociationOptions
	page         view.Page
	rbac         rbac.Middleware
	now          func() time.Time
}

// NewHandler builds the offrande handler.
func NewHandler(logger *slog.Logger, service *Service, associations AssociationOptions, page view.Page, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, associations: associations, page: page, rbac: rbac, now: time.Now}
}

// MountRoutes registers offrande routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewOffrandes))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)

		r.With(h.rbac.RequireAny(rbac.PermCreateOffrandes)).Get("/new", h.newForm)
		r.With(h.rbac.RequireAny(rbac.PermCreateOffrandes)).Post("/", h.create)

		r.With(h.rbac.RequireAny(rbac.PermEditOffrandes)).Get("/{id}/edit", h.editForm)
		r.With(h.rbac.RequireAny(rbac.PermEditOffrandes)).Post("/{id}", h.update)

		r.With(h.rbac.RequireAny(rbac.PermDeleteOffrandes)).Post("/{id}/delete", h.delete)
	})
}

type permissions struct {
	Create bool
	Edit   bool
	Delete bool
}

func (h *Handler) can(r *http.Request) permissions {
	return permissions{
		Create: h.rbac.Can(r, rbac.PermCreateOffrandes),
		Edit:   h.rbac.Can(r, rbac.PermEditOffrandes),
		Delete: h.rbac.Can(r, rbac.PermDeleteOffrandes),
	}
}

type listPage struct {
	Page         Page
	Pagination   shared.Pagination
	Filters      ListFilters
	Associations []associations.Option
	Years        []int
	Query        url.Values
	Can          permissions
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		ListParams:    finances.NewestFirst(r, shared.ParseListParams(r, "date")),
		Period:        finances.PeriodFromRequest(r, h.now()),
		AssociationID: shared.QueryInt64(r, "association"),
	}
	page, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	opts, err := h.associations.Options(r.Context())
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/finances/offrandes/list.html", "Offrandes", listPage{
		Page:         page,
		Pagination:   pagination,
		Filters:      filters,
		Associations: opts,
		Years:        shared.YearOptions(h.now()),
		Query:        r.URL.Query(),
		Can:          h.can(r),
	})
}

type detailPage struct {
	Offrande Offrande
	Can      permissions
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/finances/offrandes/detail.html", "Offrande", detailPage{Offrande: o, Can: h.can(r)})
}

type formPage struct {
	ID           int64
	Form         Form
	Errors       shared.FormErrors
	Associations []associations.Option
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, data formPage) {
	opts, err := h.associations.Options(r.Context())
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	data.Associations = opts
	title := "Nouvelle offrande"
	if data.ID > 0 {
		title = "Modifier l'offrande"
	}
	h.page.Render(w, r, status, "pages/finances/offrandes/form.html", title, data)
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	form := Form{OffrandeDay: h.now(), AssociationID: shared.QueryInt64(r, "association")}
	h.renderForm(w, r, http.StatusOK, formPage{Form: form})
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	o, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, formPage{ID: id, Form: FormFrom(o)})
}

func parseForm(r *http.Request) (Form, error) {
	if err := r.ParseForm(); err != nil {
		return Form{}, err
	}
	return Form{
		AssociationID: shared.FormInt64(r, "association_id"),
		Somme:         shared.FormInt64(r, "somme"),
		OffrandeDay:   shared.FormDate(r, "offrande_day"),
		Description:   r.PostFormValue("description"),
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
	h.page.RedirectWithFlash(w, r, "/finances/offrandes/"+strconv.FormatInt(created.ID, 10), "success", "Offrande enregistrée")
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
	h.page.RedirectWithFlash(w, r, "/finances/offrandes/"+strconv.FormatInt(id, 10), "success", "Offrande mise à jour")
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
		h.page.Fail(w, r, "/finances/offrandes/"+strconv.FormatInt(id, 10), err)
		return
	}
	h.page.RedirectWithFlash(w, r, "/finances/offrandes", "success", "Offrande supprimée")
}
