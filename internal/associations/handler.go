package associations

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

// Handler serves the /associations pages.
type Handler struct {
	logger  *slog.Logger
	service *Service
	page    view.Page
	rbac    rbac.Middleware
}

// NewHandler builds the association handler.
func NewHandler(logger *slog.Logger, service *Service, page view.Page, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, page: page, rbac: rbac}
}

// MountRoutes registers association routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermViewAssociations))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)

		r.With(h.rbac.RequireAny(rbac.PermCreateAssociations)).Get("/new", h.newForm)
		r.With(h.rbac.RequireAny(rbac.PermCreateAssociations)).Post("/", h.create)

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermEditAssociations))
			r.Get("/{id}/edit", h.editForm)
			r.Post("/{id}", h.update)
			r.Post("/{id}/restore", h.restore)
			r.Post("/{id}/members", h.addMember)
			r.Post("/{id}/members/{paroissienID}/delete", h.removeMember)
			r.Post("/{id}/members/{paroissienID}/status", h.memberStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermDeleteAssociations))
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
		Create: h.rbac.Can(r, rbac.PermCreateAssociations),
		Edit:   h.rbac.Can(r, rbac.PermEditAssociations),
		Delete: h.rbac.Can(r, rbac.PermDeleteAssociations),
	}
}

type listPage struct {
	Items      []Association
	Pagination shared.Pagination
	Filters    ListFilters
	Stats      Stats
	Query      url.Values
	Can        permissions
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{
		ListParams: shared.ParseListParams(r, "name"),
		IsActive:   shared.OptionalBool(r.URL.Query().Get("active")),
	}
	items, pagination, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	h.page.Render(w, r, http.StatusOK, "pages/associations/list.html", "Associations", listPage{
		Items:      items,
		Pagination: pagination,
		Filters:    filters,
		Stats:      stats,
		Query:      r.URL.Query(),
		Can:        h.can(r),
	})
}

type detailPage struct {
	Association Association
	Members     []Member
	Candidates  []Candidate
	Can         permissions
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	association, members, err := h.service.Detail(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	data := detailPage{Association: association, Members: members, Can: h.can(r)}
	if data.Can.Edit {
		if data.Candidates, err = h.service.Candidates(r.Context(), id); err != nil {
			h.page.Error(w, r, err)
			return
		}
	}
	h.page.Render(w, r, http.StatusOK, "pages/associations/detail.html", association.Name, data)
}

type formPage struct {
	ID     int64
	Form   AssociationForm
	Errors shared.FormErrors
}

func (h *Handler) newForm(w http.ResponseWriter, r *http.Request) {
	h.page.Render(w, r, http.StatusOK, "pages/associations/form.html", "Nouvelle association", formPage{Form: AssociationForm{IsActive: true}})
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	form := AssociationForm{Name: a.Name, Sigle: a.Sigle, Description: a.Description, IsActive: a.IsActive}
	h.page.Render(w, r, http.StatusOK, "pages/associations/form.html", "Modifier l'association", formPage{ID: id, Form: form})
}

func parseForm(r *http.Request) (AssociationForm, error) {
	if err := r.ParseForm(); err != nil {
		return AssociationForm{}, err
	}
	return AssociationForm{
		Name:        r.PostFormValue("name"),
		Sigle:       r.PostFormValue("sigle"),
		Description: r.PostFormValue("description"),
		IsActive:    shared.FormBool(r, "is_active"),
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
		h.renderFormError(w, r, 0, form, err)
		return
	}
	h.page.RedirectWithFlash(w, r, "/associations/"+strconv.FormatInt(created.ID, 10), "success", "Association créée avec succès")
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
		h.renderFormError(w, r, id, form, err)
		return
	}
	h.page.RedirectWithFlash(w, r, "/associations/"+strconv.FormatInt(id, 10), "success", "Association mise à jour avec succès")
}

func (h *Handler) renderFormError(w http.ResponseWriter, r *http.Request, id int64, form AssociationForm, err error) {
	errs := shared.FieldErrors(err)
	if errs == nil {
		if !errors.Is(err, shared.ErrConflict) && !errors.Is(err, shared.ErrDuplicate) {
			h.page.Error(w, r, err)
			return
		}
		errs = shared.FormErrors{"general": shared.UserSafeMessage(err)}
	}
	title := "Nouvelle association"
	if id > 0 {
		title = "Modifier l'association"
	}
	h.page.Render(w, r, http.StatusUnprocessableEntity, "pages/associations/form.html", title, formPage{ID: id, Form: form, Errors: errs})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.simpleAction(w, r, "/associations", "Association désactivée", h.service.Deactivate)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.simpleAction(w, r, "", "Association restaurée avec succès", h.service.Restore)
}

func (h *Handler) hardDelete(w http.ResponseWriter, r *http.Request) {
	h.simpleAction(w, r, "/associations", "Association supprimée définitivement", h.service.HardDelete)
}

// simpleAction runs fn on the {id} association; an empty success location
// returns to the detail page.
func (h *Handler) simpleAction(w http.ResponseWriter, r *http.Request, success, message string, fn func(ctx context.Context, actor, id int64) error) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	detail := "/associations/" + strconv.FormatInt(id, 10)
	if err := fn(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		h.page.Fail(w, r, detail, err)
		return
	}
	if success == "" {
		success = detail
	}
	h.page.RedirectWithFlash(w, r, success, "success", message)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := MemberForm{
		ParoissienID: shared.FormInt64(r, "paroissien_id"),
		IsPrimary:    shared.FormBool(r, "is_primary"),
		Statut:       r.PostFormValue("statut"),
	}
	detail := "/associations/" + strconv.FormatInt(id, 10)
	if err := h.service.AddMember(r.Context(), rbac.ActorID(r.Context()), id, form); err != nil {
		h.page.Fail(w, r, detail, err)
		return
	}
	h.page.RedirectWithFlash(w, r, detail, "success", "Membre ajouté avec succès")
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id, paroissienID, ok := h.memberParams(w, r)
	if !ok {
		return
	}
	detail := "/associations/" + strconv.FormatInt(id, 10)
	if err := h.service.RemoveMember(r.Context(), rbac.ActorID(r.Context()), id, paroissienID); err != nil {
		h.page.Fail(w, r, detail, err)
		return
	}
	h.page.RedirectWithFlash(w, r, detail, "success", "Membre retiré avec succès")
}

func (h *Handler) memberStatus(w http.ResponseWriter, r *http.Request) {
	id, paroissienID, ok := h.memberParams(w, r)
	if !ok {
		return
	}
	detail := "/associations/" + strconv.FormatInt(id, 10)
	if err := h.service.UpdateMemberStatus(r.Context(), rbac.ActorID(r.Context()), id, paroissienID, r.PostFormValue("statut")); err != nil {
		h.page.Fail(w, r, detail, err)
		return
	}
	h.page.RedirectWithFlash(w, r, detail, "success", "Statut mis à jour avec succès")
}

func (h *Handler) memberParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, err := shared.IDParam(r, "id")
	if err != nil {
		h.page.Error(w, r, err)
		return 0, 0, false
	}
	paroissienID, err := shared.IDParam(r, "paroissienID")
	if err != nil {
		h.page.Error(w, r, err)
		return 0, 0, false
	}
	return id, paroissienID, true
}
