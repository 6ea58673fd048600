package users

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/view"
)

const probeTimeout = 2 * time.Second

// Probe checks one backing service for the system page.
type Probe struct {
	Name string
	Ping func(ctx context.Context) error
}

// Check is the outcome of a probe.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// SystemInfo is the content of /settings/system.
type SystemInfo struct {
	Env        string
	GoVersion  string
	Goroutines int
	StartedAt  time.Time
	Uptime     time.Duration
	Checks     []Check
}

// SettingsLink is one card of the settings index.
type SettingsLink struct {
	Title       string
	Description string
	Href        string
}

// SettingsHandler serves /settings, /settings/fiscal and /settings/system.
type SettingsHandler struct {
	page    view.Page
	rbac    rbac.Middleware
	env     string
	started time.Time
	probes  []Probe
	now     func() time.Time
}

// NewSettingsHandler builds the handler. probes are run on each visit of the
// system page.
func NewSettingsHandler(page view.Page, rbac rbac.Middleware, env string, started time.Time, probes ...Probe) *SettingsHandler {
	return &SettingsHandler{page: page, rbac: rbac, env: env, started: started, probes: probes, now: time.Now}
}

// MountRoutes registers the settings routes. Users and roles mount their own
// handlers under this prefix.
func (h *SettingsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/fiscal", h.fiscalForm)
	r.Post("/fiscal", h.saveFiscal)
	r.With(h.rbac.RequireAny(rbac.PermManageSystem)).Get("/system", h.system)
}

// Links lists the settings sections the request principal may open.
func (h *SettingsHandler) Links(r *http.Request) []SettingsLink {
	links := []SettingsLink{{Title: "Période fiscale", Description: "Année et trimestre utilisés par les finances", Href: "/settings/fiscal"}}
	if h.rbac.Can(r, rbac.PermViewUsers) {
		links = append(links, SettingsLink{Title: "Utilisateurs", Description: "Comptes et rôles", Href: "/settings/users"})
	}
	if h.rbac.Can(r, rbac.PermManageSystem) {
		links = append(links,
			SettingsLink{Title: "Rôles et permissions", Description: "Matrice des autorisations", Href: "/settings/roles"},
			SettingsLink{Title: "Journal d'activité", Description: "Historique des créations, modifications et suppressions", Href: "/settings/journal"},
			SettingsLink{Title: "Système", Description: "État de l'application", Href: "/settings/system"},
			SettingsLink{Title: "Tâches planifiées", Description: "Files de la file d'attente", Href: "/jobs/health"},
		)
	}
	return links
}

func (h *SettingsHandler) index(w http.ResponseWriter, r *http.Request) {
	h.page.Render(w, r, http.StatusOK, "pages/settings/index.html", "Paramètres", h.Links(r))
}

type fiscalPage struct {
	Period   shared.FiscalPeriod
	Years    []int
	Quarters []int
}

func (h *SettingsHandler) fiscalForm(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	h.page.Render(w, r, http.StatusOK, "pages/settings/fiscal.html", "Période fiscale", fiscalPage{
		Period:   shared.FiscalPeriodFromSession(sess, h.now()),
		Years:    shared.YearOptions(h.now()),
		Quarters: []int{0, 1, 2, 3, 4},
	})
}

func (h *SettingsHandler) saveFiscal(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	period, ok := shared.ParseFiscalPeriod(r.PostFormValue("year"), r.PostFormValue("quarter"))
	if !ok {
		h.page.RedirectWithFlash(w, r, "/settings/fiscal", "danger", "Période fiscale invalide")
		return
	}
	shared.SaveFiscalPeriod(shared.SessionFromContext(r.Context()), period)
	h.page.RedirectWithFlash(w, r, "/settings/fiscal", "success", "Période fiscale enregistrée : "+period.Label())
}

func (h *SettingsHandler) system(w http.ResponseWriter, r *http.Request) {
	h.page.Render(w, r, http.StatusOK, "pages/settings/system.html", "Système", h.SystemInfo(r.Context()))
}

// SystemInfo runs every probe concurrently.
func (h *SettingsHandler) SystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{
		Env:        h.env,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		StartedAt:  h.started,
		Uptime:     h.now().Sub(h.started).Truncate(time.Second),
		Checks:     make([]Check, len(h.probes)),
	}
	var wg sync.WaitGroup
	for i, p := range h.probes {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			check := Check{Name: p.Name, OK: true, Detail: "OK"}
			if err := p.Ping(pctx); err != nil {
				check.OK = false
				check.Detail = err.Error()
			}
			info.Checks[i] = check
		}()
	}
	wg.Wait()
	return info
}
