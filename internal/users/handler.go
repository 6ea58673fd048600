package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

const listPath = "/settings/users"

// Handler manages /settings/users.
type Handler struct {
	logger  *slog.Logger
	service *Service
	page    view.Page
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, page view.Page, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, page: page, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewUsers))
		r.Get("/", h.list)

		r.With(h.rbac.RequireAny(rbac.PermCreateUsers)).Get("/new", h.newForm)
		r.With(h.rbac.RequireAny(rbac.PermCreateUsers)).Post("/", h.create)

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermEditUsers))
			r.Post("/{id}/activate", h.activate)
			r.Post("/{id}/deactivate", h.deactivate)
		})
		r.With(h.rbac.RequireAny(rbac.PermDeleteUsers)).Post("/{id}/delete", h.delete)
	})
}

type permissions struct {
	Create bool
	Edit   bool
	Delete bool
}

type listPage struct {
	Items      []User
	Pagination shared.Pagination
	Filters    ListFilters
	Roles      []RoleOption
	Query      url.Values
	CurrentID  int64
	Can        permissions
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		ListParams: shared.ParseListParams(r, "name"),
		IsActive:   shared.OptionalBool(q.Get("active")),
	}
	if role, ok := rbac.ParseRole(q.Get("role")); ok {
		filters.Role = role
	}
	items, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/settings/users.html", "Utilisateurs", listPage{
		Items:      items,
		Pagination: pagination,
		Filters:    filters,
		Roles:      RoleOptions(),
		Query:      q,
		CurrentID:  rbac.ActorID(r.Context()),
		Can: permissions{
			Create: h.rbac.Can(r, rbac.PermCreateUsers),
			Edit:   h.rbac.Can(r, rbac.PermEditUsers),
			Delete: h.rbac.Can(r, rbac.PermDeleteUsers),
		},
	})
}

type formPage struct {
	Form   Form
	Roles  []RoleOption
	Errors shared.FormErrors
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	form := Form{Role: string(rbac.RoleSecretaire), IsActive: true}
	h.page.Render(w, r, http.StatusOK, "pages/settings/user_form.html", "Nouvel utilisateur", formPage{Form: form, Roles: RoleOptions()})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := Form{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     r.PostFormValue("role"),
		IsActive: shared.FormBool(r, "is_active"),
	}
	if _, err := h.service.Create(r.Context(), rbac.ActorID(r.Context()), form); err != nil {
		errs := shared.FieldErrors(err)
		if errs == nil {
			if !errors.Is(err, shared.ErrConflict) && !errors.Is(err, shared.ErrDuplicate) {
				h.page.Error(w, r, err)
				return
			}
			errs = shared.FormErrors{"general": shared.UserSafeMessage(err)}
		}
		form.Password = ""
		h.page.Render(w, r, http.StatusUnprocessableEntity, "pages/settings/user_form.html", "Nouvel utilisateur", formPage{Form: form, Roles: RoleOptions(), Errors: errs})
		return
	}
	h.page.RedirectWithFlash(w, r, listPath, "success", "Utilisateur créé avec succès")
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Utilisateur activé", h.service.Activate)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Utilisateur désactivé", h.service.Deactivate)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "Utilisateur supprimé", h.service.Delete)
}

func (h *Handler) action(w http.ResponseWriter, r *http.Request, message string, fn func(ctx context.Context, actor, id int64) error) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	if err := fn(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		h.page.Fail(w, r, listPath, err)
		return
	}
	h.page.RedirectWithFlash(w, r, listPath, "success", message)
}
