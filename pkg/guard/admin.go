package guard

import (
	"net/http"

	"github.com/frameio/frameio-gateway/pkg/adminsession"
	"github.com/frameio/frameio-gateway/pkg/contextkeys"
	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/observability"
)

// AdminGuard protects the operator console. Unlike RouteGuard it never
// redirects: a request without a valid admin session is answered in
// place with 401 and a login challenge, so the caller stays on the same
// URL and can authenticate without losing its place.
type AdminGuard struct {
	store   *adminsession.Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAdminGuard builds the admin console guard
func NewAdminGuard(store *adminsession.Store, logger *observability.Logger, metrics *observability.Metrics) *AdminGuard {
	return &AdminGuard{store: store, logger: logger, metrics: metrics}
}

// loginChallenge is the body sent with 401 responses. The client swaps
// its current view for a login form and retries after authenticating.
type loginChallenge struct {
	Error     string `json:"error"`
	Challenge string `json:"challenge"`
	LoginPath string `json:"login_path"`
}

// Middleware wraps a handler with the admin session check
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := g.store.SessionFromRequest(r)
		if session == nil {
			g.decide(decisionDenied)
			g.logger.WithField("path", r.URL.Path).Info("admin guard challenge")
			httputil.WriteJSON(w, http.StatusUnauthorized, loginChallenge{
				Error:     "admin authentication required",
				Challenge: "admin-login",
				LoginPath: "/admin/login",
			})
			return
		}

		g.decide(decisionAllowed)
		ctx := contextkeys.WithAdminSession(r.Context(), session)
		ctx = contextkeys.WithPrincipal(ctx, session.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *AdminGuard) decide(decision string) {
	if g.metrics != nil {
		g.metrics.GuardDecisionsTotal.WithLabelValues("admin", decision).Inc()
	}
}
