// Package api wires the HTTP surface: operator console routes, the
// role-guarded dashboard API and the identity endpoints.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/frameio/frameio-gateway/pkg/guard"
	"github.com/frameio/frameio-gateway/pkg/identity"
	"github.com/frameio/frameio-gateway/pkg/middleware"
	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
)

// Server assembles the router from its handler sets and guards
type Server struct {
	admin       *AdminHandlers
	dashboard   *DashboardHandlers
	idp         *identity.Provider
	adminGuard  *guard.AdminGuard
	userRoutes  *guard.RouteGuard
	orgRoutes   *guard.RouteGuard
	permGuard   *guard.PermissionGuard
	logger      *observability.Logger
	metrics     *observability.Metrics
	posterLimit *middleware.RateLimiter
}

// Deps carries everything the server needs
type Deps struct {
	Admin      *AdminHandlers
	Dashboard  *DashboardHandlers
	IDP        *identity.Provider
	AdminGuard *guard.AdminGuard
	UserRoutes *guard.RouteGuard
	OrgRoutes  *guard.RouteGuard
	PermGuard  *guard.PermissionGuard
	Logger     *observability.Logger
	Metrics    *observability.Metrics

	// PosterLimit throttles the expensive AI endpoints. Admin login is
	// deliberately not limited; locking operators out is worse than
	// absorbing a brute-force attempt the audit log will show anyway.
	PosterLimit *middleware.RateLimiter
}

// NewServer builds the server
func NewServer(deps Deps) *Server {
	return &Server{
		admin:       deps.Admin,
		dashboard:   deps.Dashboard,
		idp:         deps.IDP,
		adminGuard:  deps.AdminGuard,
		userRoutes:  deps.UserRoutes,
		orgRoutes:   deps.OrgRoutes,
		permGuard:   deps.PermGuard,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		posterLimit: deps.PosterLimit,
	}
}

// Router builds the route tree
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}

	// Identity endpoints for browser sessions against the product IdP.
	if s.idp != nil {
		r.HandleFunc("/auth/login", s.idp.LoginHandler()).Methods(http.MethodGet)
		r.HandleFunc("/auth/callback", s.idp.CallbackHandler()).Methods(http.MethodGet)
		r.HandleFunc("/auth/logout", s.idp.LogoutHandler()).Methods(http.MethodPost)
	}

	// Operator console. Login and session probing sit outside the
	// guard; everything else answers 401 in place without a session.
	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/login", s.admin.Login).Methods(http.MethodPost)
	admin.HandleFunc("/logout", s.admin.Logout).Methods(http.MethodPost)
	admin.HandleFunc("/session", s.admin.Session).Methods(http.MethodGet)

	adminAPI := admin.NewRoute().Subrouter()
	adminAPI.Use(s.adminGuard.Middleware)
	adminAPI.HandleFunc("/users", s.admin.Users).Methods(http.MethodGet)
	adminAPI.HandleFunc("/users/{id}", s.admin.DeleteUser).Methods(http.MethodDelete)
	adminAPI.HandleFunc("/analytics", s.admin.Analytics).Methods(http.MethodGet)
	adminAPI.HandleFunc("/settings", s.admin.GetSettings).Methods(http.MethodGet)
	adminAPI.HandleFunc("/settings", s.admin.PatchSettings).Methods(http.MethodPatch)

	// Product dashboard. Identity middleware authenticates, the route
	// guards decide role access, permission guards gate the sensitive
	// operations inside.
	dash := r.PathPrefix("/api/dashboard").Subrouter()
	if s.idp != nil {
		dash.Use(s.idp.Middleware(s.metrics))
	}

	dash.HandleFunc("/me", s.dashboard.Me).Methods(http.MethodGet)
	dash.HandleFunc("/me/refresh", s.dashboard.RefreshMe).Methods(http.MethodPost)

	users := dash.PathPrefix("/users").Subrouter()
	users.Use(s.userRoutes.Middleware)
	users.HandleFunc("", s.dashboard.Users).Methods(http.MethodGet)
	users.Handle("/{id}", s.permGuard.Require(principal.PermManageUsers)(
		http.HandlerFunc(s.dashboard.UpdateUser))).Methods(http.MethodPatch)
	users.Handle("/{id}", s.permGuard.Require(principal.PermManageUsers)(
		http.HandlerFunc(s.dashboard.DeleteUser))).Methods(http.MethodDelete)

	org := dash.PathPrefix("/organization").Subrouter()
	org.Use(s.orgRoutes.Middleware)
	org.HandleFunc("", s.dashboard.Organization).Methods(http.MethodGet)
	org.Handle("", s.permGuard.Require(principal.PermManageOrganization)(
		http.HandlerFunc(s.dashboard.UpdateOrganization))).Methods(http.MethodPatch)

	dash.Handle("/billing", s.permGuard.Require(principal.PermViewBilling)(
		http.HandlerFunc(s.dashboard.Billing))).Methods(http.MethodGet)

	dash.HandleFunc("/company-profile", s.dashboard.CompanyProfile).Methods(http.MethodGet)
	dash.HandleFunc("/company-profile/status", s.dashboard.CompanyProfileStatus).Methods(http.MethodGet)

	poster := dash.PathPrefix("/poster").Subrouter()
	poster.HandleFunc("/status", s.dashboard.PosterStatus).Methods(http.MethodGet)
	posterGuard := s.permGuard.Require(principal.PermGeneratePosters)
	wrap := func(h http.HandlerFunc) http.Handler {
		guarded := posterGuard(h)
		if s.posterLimit != nil {
			guarded = s.posterLimit.Middleware(guarded)
		}
		return guarded
	}
	poster.Handle("/generate", wrap(s.dashboard.GeneratePoster)).Methods(http.MethodPost)
	poster.Handle("/edit", wrap(s.dashboard.EditPoster)).Methods(http.MethodPost)
	poster.Handle("/composite", wrap(s.dashboard.CompositePoster)).Methods(http.MethodPost)

	return r
}
