package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/paroisse/paroisse/internal/associations"
	audithttp "github.com/paroisse/paroisse/internal/audit/http"
	"github.com/paroisse/paroisse/internal/auth"
	"github.com/paroisse/paroisse/internal/dashboard"
	"github.com/paroisse/paroisse/internal/finances"
	"github.com/paroisse/paroisse/internal/finances/engagements"
	"github.com/paroisse/paroisse/internal/finances/offrandes"
	"github.com/paroisse/paroisse/internal/finances/versements"
	"github.com/paroisse/paroisse/internal/observability"
	"github.com/paroisse/paroisse/internal/paroissiens"
	"github.com/paroisse/paroisse/internal/rbac"
	"github.com/paroisse/paroisse/internal/reports"
	"github.com/paroisse/paroisse/internal/shared"
	"github.com/paroisse/paroisse/internal/users"
	"github.com/paroisse/paroisse/internal/view"
	"github.com/paroisse/paroisse/jobs"
	"github.com/paroisse/paroisse/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Guard          *rbac.Guard
	Matrix         *rbac.Matrix
	Metrics        *observability.Metrics

	AuthHandler         *auth.Handler
	DashboardHandler    *dashboard.Handler
	ParoissiensHandler  *paroissiens.Handler
	AssociationsHandler *associations.Handler
	OverviewHandler     *finances.OverviewHandler
	EngagementsHandler  *engagements.Handler
	VersementsHandler   *versements.Handler
	OffrandesHandler    *offrandes.Handler
	ReportsHandler      *reports.Handler
	UsersHandler        *users.Handler
	SettingsHandler     *users.SettingsHandler
	PermissionsHandler  *rbac.PermissionsHandler
	JournalHandler      *audithttp.Handler
	JobHandler          *jobs.Handler
}

// NewRouter constructs the chi.Router with the application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	if params.Templates != nil && params.Guard != nil {
		params.Templates.SetChrome(Chrome(params.Matrix, params.Guard.Routes(), time.Now))
	}

	r.Group(func(r chi.Router) {
		if params.Guard != nil {
			r.Use(params.Guard.Middleware)
		}

		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		if params.DashboardHandler != nil {
			params.DashboardHandler.MountRoutes(r)
		}
		if params.ParoissiensHandler != nil {
			r.Route("/paroissiens", params.ParoissiensHandler.MountRoutes)
		}
		if params.AssociationsHandler != nil {
			r.Route("/associations", params.AssociationsHandler.MountRoutes)
		}
		r.Route("/finances", func(r chi.Router) {
			if params.OverviewHandler != nil {
				params.OverviewHandler.MountRoutes(r)
			}
			if params.EngagementsHandler != nil {
				r.Route("/engagements", params.EngagementsHandler.MountRoutes)
			}
			if params.VersementsHandler != nil {
				r.Route("/versements", params.VersementsHandler.MountRoutes)
			}
			if params.OffrandesHandler != nil {
				r.Route("/offrandes", params.OffrandesHandler.MountRoutes)
			}
		})
		if params.ReportsHandler != nil {
			r.Route("/rapports", params.ReportsHandler.MountRoutes)
		}
		r.Route("/settings", func(r chi.Router) {
			if params.SettingsHandler != nil {
				params.SettingsHandler.MountRoutes(r)
			}
			if params.UsersHandler != nil {
				r.Route("/users", params.UsersHandler.MountRoutes)
			}
			if params.PermissionsHandler != nil {
				r.Route("/roles", params.PermissionsHandler.MountRoutes)
			}
			if params.JournalHandler != nil {
				r.Route("/journal", params.JournalHandler.MountRoutes)
			}
		})
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

// Chrome builds the layout of authenticated pages: the user menu, the
// sidebar filtered for the principal's role and the session fiscal period.
func Chrome(matrix *rbac.Matrix, routes rbac.RouteTable, now func() time.Time) view.ChromeFunc {
	return func(r *http.Request) view.Layout {
		principal := rbac.PrincipalFromContext(r.Context())
		if principal == nil {
			return view.Layout{}
		}
		items := rbac.FilterNavigation(rbac.DefaultNavigation(), matrix, routes, principal.Role)
		layout := view.Layout{
			UserName:  principal.Name,
			UserEmail: principal.Email,
			RoleLabel: principal.Role.Label(),
			Nav:       navLinks(items, r.URL.Path),
		}
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			layout.FiscalLabel = shared.FiscalPeriodFromSession(sess, now()).Label()
		}
		return layout
	}
}

func navLinks(items []rbac.NavItem, current string) []view.NavLink {
	links := make([]view.NavLink, 0, len(items))
	for _, item := range items {
		link := view.NavLink{
			Title:  item.Title,
			Href:   item.Href,
			Icon:   item.Icon,
			Active: activePath(current, item.Href),
		}
		if len(item.Children) > 0 {
			link.Children = navLinks(item.Children, current)
		}
		links = append(links, link)
	}
	return links
}

func activePath(current, href string) bool {
	if href == "/" {
		return current == "/"
	}
	return current == href || strings.HasPrefix(current, href+"/")
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
