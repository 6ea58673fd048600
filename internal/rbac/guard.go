package rbac

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Outcome is the terminal state of a guard evaluation.
type Outcome string

// Guard outcomes.
const (
	OutcomeAllow         Outcome = "allow"
	OutcomeRedirectLogin Outcome = "redirect_login"
	OutcomeRedirectHome  Outcome = "redirect_home"
)

// Decision is the result of evaluating one request.
type Decision struct {
	Outcome   Outcome
	Location  string
	Principal *Principal
	// Rule is the first rule that denied access, if any.
	Rule *RouteRule
}

// DecisionRecorder observes guard outcomes.
type DecisionRecorder interface {
	ObserveAuthzDecision(outcome string)
}

// Guard is the page-level authorization decision point.
type Guard struct {
	matrix   *Matrix
	routes   RouteTable
	resolver PrincipalResolver
	logger   *slog.Logger
	recorder DecisionRecorder
}

// NewGuard constructs a Guard. logger and recorder may be nil.
func NewGuard(matrix *Matrix, routes RouteTable, resolver PrincipalResolver, logger *slog.Logger, recorder DecisionRecorder) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{matrix: matrix, routes: routes, resolver: resolver, logger: logger, recorder: recorder}
}

// Routes returns the guard configuration.
func (g *Guard) Routes() RouteTable {
	return g.routes
}

// Decide evaluates the request without writing a response.
func (g *Guard) Decide(r *http.Request) Decision {
	p := r.URL.Path
	principal := g.resolve(r)

	if g.routes.IsPublic(p) {
		if principal != nil && g.routes.IsLogin(p) {
			return Decision{Outcome: OutcomeRedirectHome, Location: g.routes.HomePath, Principal: principal}
		}
		return Decision{Outcome: OutcomeAllow, Principal: principal}
	}

	if principal == nil {
		return Decision{Outcome: OutcomeRedirectLogin, Location: g.loginLocation(p)}
	}

	if !principal.Role.Known() {
		g.logger.Warn("rbac unknown role", slog.Int64("user_id", principal.ID), slog.String("role", string(principal.Role)), slog.String("path", p))
	}

	for _, rule := range g.routes.Matching(p) {
		if !g.matrix.HasAnyPermission(principal.Role, rule.AnyOf...) {
			denied := rule
			g.logger.Warn("rbac route denied",
				slog.Int64("user_id", principal.ID),
				slog.String("role", string(principal.Role)),
				slog.String("path", p),
				slog.String("rule", rule.Prefix),
			)
			return Decision{Outcome: OutcomeRedirectHome, Location: g.routes.HomePath, Principal: principal, Rule: &denied}
		}
	}

	return Decision{Outcome: OutcomeAllow, Principal: principal}
}

// Middleware enforces guard decisions. Allowed requests carry the principal in
// their context.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.routes.IsExcluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		decision := g.Decide(r)
		if g.recorder != nil {
			g.recorder.ObserveAuthzDecision(string(decision.Outcome))
		}
		switch decision.Outcome {
		case OutcomeAllow:
			ctx := r.Context()
			if decision.Principal != nil {
				ctx = ContextWithPrincipal(ctx, decision.Principal)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		default:
			http.Redirect(w, r, decision.Location, http.StatusSeeOther)
		}
	})
}

func (g *Guard) resolve(r *http.Request) *Principal {
	if g.resolver == nil {
		return nil
	}
	principal, err := g.resolver.Resolve(r)
	if err != nil {
		g.logger.Warn("rbac resolve principal", slog.Any("error", err), slog.String("path", r.URL.Path))
		return nil
	}
	return principal
}

func (g *Guard) loginLocation(p string) string {
	if p == "" || p == g.routes.HomePath {
		return g.routes.LoginPath
	}
	return g.routes.LoginPath + "?callbackUrl=" + strings.ReplaceAll(url.QueryEscape(p), "%2F", "/")
}

// SafeCallback returns target when it is a local absolute path, otherwise
// fallback. Used by the login handler to honour callbackUrl.
func SafeCallback(target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}
