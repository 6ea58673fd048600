package view

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/paroisse/paroisse/internal/platform/httpx"
	"github.com/paroisse/paroisse/internal/shared"
)

// Page renders full HTML pages with the session's CSRF token and flash.
type Page struct {
	Templates *Engine
	CSRF      *shared.CSRFManager
	Logger    *slog.Logger
}

// NewPage bundles the rendering dependencies shared by handlers.
func NewPage(templates *Engine, csrf *shared.CSRFManager, logger *slog.Logger) Page {
	if logger == nil {
		logger = slog.Default()
	}
	return Page{Templates: templates, CSRF: csrf, Logger: logger}
}

// Render executes template name with data wrapped in TemplateData.
func (p Page) Render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if p.CSRF != nil {
		csrfToken, _ = p.CSRF.EnsureToken(sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := p.Templates.Render(w, r, name, viewData); err != nil {
		p.Logger.Error("render template", slog.String("template", name), slog.Any("error", err))
	}
}

// Error renders the error page matching err. Unexpected errors are logged.
func (p Page) Error(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		p.Render(w, r, http.StatusNotFound, "pages/errors/not_found.html", "Introuvable", nil)
		return
	}
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		p.Logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	p.Render(w, r, status, "pages/errors/error.html", "Erreur", map[string]any{
		"Status":  status,
		"Message": shared.UserSafeMessage(err),
	})
}

// RedirectWithFlash queues a flash message and answers 303.
func (p Page) RedirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// Fail redirects back to location with err rendered as a danger flash.
func (p Page) Fail(w http.ResponseWriter, r *http.Request, location string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		p.Logger.Error("action failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	p.RedirectWithFlash(w, r, location, "danger", shared.UserSafeMessage(err))
}
