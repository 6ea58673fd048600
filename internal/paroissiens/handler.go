package paroissiens

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/associations"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// AssociationOptions lists the associations a paroissien can join.
type AssociationOptions interface {
	Options(ctx context.Context) ([]associations.Option, error)
}

// Handler serves the /paroissiens pages.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	associations AssociationOptions
	page         view.Page
	rbac         rbac.Middleware
}

// NewHandler builds the paroissien handler.
func NewHandler(logger *slog.Logger, service *Service, associations AssociationOptions, page view.Page, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, associations: associations, page: page, rbac: rbac}
}

// MountRoutes registers paroissien routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewParoissiens))
		r.Get("/", h.list)
		r.Get("/matricule", h.byMatricule)
		r.Get("/{id}", h.show)

		r.With(h.rbac.RequireAny(rbac.PermCreateParoissiens)).Get("/new", h.newForm)
		r.With(h.rbac.RequireAny(rbac.PermCreateParoissiens)).Post("/", h.create)

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermEditParoissiens))
			r.Get("/{id}/edit", h.editForm)
			r.Post("/{id}", h.update)
			r.Post("/{id}/restore", h.restore)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermDeleteParoissiens))
			r.Post("/{id}/delete", h.deactivate)
			r.Post("/{id}/destroy", h.hardDelete)
		})
	})
}

type permissions struct {
	Create bool
	Edit   bool
	Delete bool
}

func (h *Handler) can(r *http.Request) permissions {
	return permissions{
		Create: h.rbac.Can(r, rbac.PermCreateParoissiens),
		Edit:   h.rbac.Can(r, rbac.PermEditParoissiens),
		Delete: h.rbac.Can(r, rbac.PermDeleteParoissiens),
	}
}

type choices struct {
	Genres       []Choice
	Categories   []Choice
	Situations   []Choice
	Associations []associations.Option
}

func (h *Handler) choices(ctx context.Context) (choices, error) {
	opts, err := h.associations.Options(ctx)
	if err != nil {
		return choices{}, err
	}
	return choices{Genres: Genres, Categories: Categories, Situations: Situations, Associations: opts}, nil
}

type listPage struct {
	Items      []Paroissien
	Pagination shared.Pagination
	Filters    ListFilters
	Choices    choices
	Query      url.Values
	Can        permissions
}

// ParseListFilters reads the listing query string.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	return ListFilters{
		ListParams:    shared.ParseListParams(r, "name"),
		Categorie:     pick(Categories, q.Get("categorie")),
		Genre:         pick(Genres, q.Get("genre")),
		Situation:     pick(Situations, q.Get("situation")),
		AssociationID: shared.QueryInt64(r, "association"),
		IsActive:      shared.OptionalBool(q.Get("active")),
	}
}

// pick keeps value only when it is one of choices.
func pick(choices []Choice, value string) string {
	for _, c := range choices {
		if c.Value == value {
			return value
		}
	}
	return ""
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ParseListFilters(r)
	items, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	ch, err := h.choices(r.Context())
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/paroissiens/list.html", "Paroissiens", listPage{
		Items:      items,
		Pagination: pagination,
		Filters:    filters,
		Choices:    ch,
		Query:      r.URL.Query(),
		Can:        h.can(r),
	})
}

func (h *Handler) byMatricule(w http.ResponseWriter, r *http.Request) {
	id, err := h.service.FindByMatricule(r.Context(), r.URL.Query().Get("m"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.page.RedirectWithFlash(w, r, "/paroissiens", "danger", "Aucun paroissien avec ce matricule")
			return
		}
		h.page.Error(w, r, err)
		return
	}
	http.Redirect(w, r, "/paroissiens/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

type detailPage struct {
	Paroissien Paroissien
	Can        permissions
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/paroissiens/detail.html", p.Name, detailPage{Paroissien: p, Can: h.can(r)})
}

type formPage struct {
	ID        int64
	Matricule string
	Form      Form
	Errors    shared.FormErrors
	Choices   choices
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, data formPage) {
	ch, err := h.choices(r.Context())
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	data.Choices = ch
	title := "Nouveau paroissien"
	if data.ID > 0 {
		title = "Modifier le paroissien"
	}
	h.page.Render(w, r, status, "pages/paroissiens/form.html", title, data)
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, formPage{Form: DefaultForm()})
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.renderForm(w, r, http.StatusOK, formPage{ID: id, Matricule: p.Matricule, Form: FormFrom(p)})
}

func parseForm(r *http.Request) (Form, error) {
	if err := r.ParseForm(); err != nil {
		return Form{}, err
	}
	return Form{
		Name:           r.PostFormValue("name"),
		Genre:          r.PostFormValue("genre"),
		Categorie:      r.PostFormValue("categorie"),
		Situation:      r.PostFormValue("situation"),
		Birthdate:      shared.FormDate(r, "birthdate"),
		Birthplace:     r.PostFormValue("birthplace"),
		Email:          r.PostFormValue("email"),
		Phone:          r.PostFormValue("phone"),
		Address:        r.PostFormValue("address"),
		SchoolLevel:    r.PostFormValue("school_level"),
		ServicePlace:   r.PostFormValue("service_place"),
		BaptiseDate:    shared.FormDate(r, "baptise_date"),
		ConfirmDate:    shared.FormDate(r, "confirm_date"),
		AdhesionDate:   shared.FormDate(r, "adhesion_date"),
		Notes:          r.PostFormValue("notes"),
		IsActive:       shared.FormBool(r, "is_active"),
		AssociationIDs: shared.FormIDs(r, "association_ids"),
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
	h.page.RedirectWithFlash(w, r, "/paroissiens/"+strconv.FormatInt(created.ID, 10), "success",
		"Paroissien créé avec succès (matricule "+created.Matricule+")")
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
	h.page.RedirectWithFlash(w, r, "/paroissiens/"+strconv.FormatInt(id, 10), "success", "Paroissien mis à jour avec succès")
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, data formPage, err error) {
	data.Errors = shared.FieldErrors(err)
	if data.Errors == nil {
		if !errors.Is(err, shared.ErrConflict) && !errors.Is(err, shared.ErrDuplicate) {
			h.page.Error(w, r, err)
			return
		}
		data.Errors = shared.FormErrors{"general": shared.UserSafeMessage(err)}
	}
	h.renderForm(w, r, http.StatusUnprocessableEntity, data)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "/paroissiens", "Paroissien désactivé", h.service.Deactivate)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "", "Paroissien restauré avec succès", h.service.Restore)
}

func (h *Handler) hardDelete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "/paroissiens", "Paroissien supprimé définitivement", h.service.HardDelete)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, success, message string, fn func(ctx context.Context, actor, id int64) error) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	detail := "/paroissiens/" + strconv.FormatInt(id, 10)
	if err := fn(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		h.page.Fail(w, r, detail, err)
		return
	}
	if success == "" {
		success = detail
	}
	h.page.RedirectWithFlash(w, r, success, "success", message)
}
