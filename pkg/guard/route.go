// Package guard provides the authorization middleware that sits
// between the router and the protected handlers. Route guards redirect
// unauthorized browsers to a safe page; the admin guard answers in
// place with a login challenge instead.
package guard

import (
	"net/http"

	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
	"github.com/frameio/frameio-gateway/pkg/profile"
)

const (
	decisionAllowed  = "allowed"
	decisionRedirect = "redirected"
	decisionDenied   = "denied"
)

// RouteGuard redirects requests that lack an allowed role. The
// protected handler never runs for a disallowed request; the caller
// gets exactly one 303 redirect to the configured destination.
type RouteGuard struct {
	resolver   *profile.Resolver
	allowed    []principal.Role
	redirectTo string
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// RequireRoles builds a route guard allowing only the given roles.
// redirectTo is where disallowed requests are sent; it defaults to "/".
func RequireRoles(resolver *profile.Resolver, logger *observability.Logger, metrics *observability.Metrics, redirectTo string, allowed ...principal.Role) *RouteGuard {
	if redirectTo == "" {
		redirectTo = "/"
	}
	return &RouteGuard{
		resolver:   resolver,
		allowed:    allowed,
		redirectTo: redirectTo,
		logger:     logger,
		metrics:    metrics,
	}
}

// Middleware wraps a handler with the role check
func (g *RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pr := principal.FromContext(r.Context())
		if pr == nil {
			g.redirect(w, r, "unauthenticated")
			return
		}

		// Operator principals carry their grants directly and skip
		// profile resolution.
		if pr.Issuer == principal.IssuerOperator {
			if pr.HasAnyRole(g.allowed...) || pr.HasPermission(principal.PermPlatformAdmin) {
				g.decide(decisionAllowed)
				next.ServeHTTP(w, r)
				return
			}
			g.redirect(w, r, "role not allowed")
			return
		}

		prof, err := g.resolver.Resolve(r.Context(), pr)
		if err != nil {
			// Fail closed. A principal whose membership cannot be
			// established gets no access.
			g.logger.WithError(err).WithField("principal_id", pr.ID).
				Warn("profile resolution failed, denying route access")
			g.redirect(w, r, "profile unavailable")
			return
		}

		if !prof.HasRole(g.allowed...) {
			g.redirect(w, r, "role not allowed")
			return
		}

		g.decide(decisionAllowed)
		next.ServeHTTP(w, r)
	})
}

func (g *RouteGuard) redirect(w http.ResponseWriter, r *http.Request, reason string) {
	g.decide(decisionRedirect)
	g.logger.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"reason": reason,
	}).Info("route guard redirect")
	http.Redirect(w, r, g.redirectTo, http.StatusSeeOther)
}

func (g *RouteGuard) decide(decision string) {
	if g.metrics != nil {
		g.metrics.GuardDecisionsTotal.WithLabelValues("route", decision).Inc()
	}
}
