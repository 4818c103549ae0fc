package guard

import (
	"net/http"

	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
	"github.com/frameio/frameio-gateway/pkg/profile"
)

// PermissionGuard answers API requests that lack a permission with a
// 403 naming the missing grant, so clients can explain the denial
// instead of showing a generic error.
type PermissionGuard struct {
	resolver *profile.Resolver
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewPermissionGuard builds a permission guard backed by the profile resolver
func NewPermissionGuard(resolver *profile.Resolver, logger *observability.Logger, metrics *observability.Metrics) *PermissionGuard {
	return &PermissionGuard{resolver: resolver, logger: logger, metrics: metrics}
}

// Require wraps a handler, allowing it to run only when the caller
// holds the permission.
func (g *PermissionGuard) Require(perm principal.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pr := principal.FromContext(r.Context())
			if pr == nil {
				g.decide(decisionDenied)
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if pr.Issuer == principal.IssuerOperator {
				if pr.HasPermission(perm) || pr.HasPermission(principal.PermPlatformAdmin) {
					g.decide(decisionAllowed)
					next.ServeHTTP(w, r)
					return
				}
				g.deny(w, r, perm)
				return
			}

			prof, err := g.resolver.Resolve(r.Context(), pr)
			if err != nil {
				g.logger.WithError(err).WithField("principal_id", pr.ID).
					Warn("profile resolution failed, denying permission")
				g.deny(w, r, perm)
				return
			}
			if !prof.HasPermission(perm) {
				g.deny(w, r, perm)
				return
			}

			g.decide(decisionAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

func (g *PermissionGuard) deny(w http.ResponseWriter, r *http.Request, perm principal.Permission) {
	g.decide(decisionDenied)
	g.logger.WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"permission": string(perm),
	}).Info("permission denied")
	httputil.WriteAccessDenied(w, string(perm))
}

func (g *PermissionGuard) decide(decision string) {
	if g.metrics != nil {
		g.metrics.GuardDecisionsTotal.WithLabelValues("permission", decision).Inc()
	}
}
