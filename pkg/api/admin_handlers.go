package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/frameio/frameio-gateway/pkg/adminsession"
	"github.com/frameio/frameio-gateway/pkg/audit"
	"github.com/frameio/frameio-gateway/pkg/contextkeys"
	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

// PlatformSettings are the operator-tunable switches. They live in
// memory; every change is audited.
type PlatformSettings struct {
	MaintenanceMode  bool `json:"maintenance_mode"`
	SignupEnabled    bool `json:"signup_enabled"`
	PosterDailyLimit int  `json:"poster_daily_limit"`
}

// SettingsPatch carries the mutable settings fields
type SettingsPatch struct {
	MaintenanceMode  *bool `json:"maintenance_mode,omitempty"`
	SignupEnabled    *bool `json:"signup_enabled,omitempty"`
	PosterDailyLimit *int  `json:"poster_daily_limit,omitempty"`
}

// AdminHandlers serves the operator console endpoints
type AdminHandlers struct {
	store   *adminsession.Store
	client  *upstream.Client
	audit   audit.Logger
	logger  *logrus.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	settings PlatformSettings
}

// NewAdminHandlers builds the admin handler set
func NewAdminHandlers(store *adminsession.Store, client *upstream.Client, auditLogger audit.Logger, logger *logrus.Logger, metrics *observability.Metrics) *AdminHandlers {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &AdminHandlers{
		store:   store,
		client:  client,
		audit:   auditLogger,
		logger:  logger,
		metrics: metrics,
		settings: PlatformSettings{
			SignupEnabled:    true,
			PosterDailyLimit: 100,
		},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Username  string    `json:"username"`
	LoginTime time.Time `json:"login_time"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies operator credentials and issues the session cookie.
// Failed attempts get the same response regardless of which field was
// wrong.
func (h *AdminHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if !h.store.VerifyCredentials(req.Username, req.Password) {
		h.loginOutcome("failure")
		h.auditEvent(r, audit.Event{
			Type:        audit.EventLoginFailed,
			PrincipalID: "operator:" + req.Username,
		})
		h.logger.WithFields(logrus.Fields{
			"username": req.Username,
			"ip":       httputil.ClientIP(r),
		}).Warn("admin login failed")
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	token, err := h.store.CreateSession(req.Username)
	if err != nil {
		h.loginOutcome("failure")
		h.logger.WithError(err).Error("failed to create admin session")
		httputil.WriteInternalError(w, err)
		return
	}

	h.store.SetCookie(w, token)
	h.loginOutcome("success")
	h.auditEvent(r, audit.Event{
		Type:        audit.EventLogin,
		PrincipalID: "operator:" + req.Username,
	})

	session := h.store.Verify(token)
	httputil.WriteSuccess(w, sessionResponse{
		Username:  session.Username,
		LoginTime: session.LoginTime,
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout clears the session cookie. Always succeeds, even without a
// session.
func (h *AdminHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.store.SessionFromRequest(r); session != nil {
		h.auditEvent(r, audit.Event{
			Type:        audit.EventLogout,
			PrincipalID: "operator:" + session.Username,
		})
	}
	h.store.ClearCookie(w)
	httputil.WriteSuccess(w, map[string]string{"status": "logged out"})
}

// Session reports the current admin session, 401 when there is none
func (h *AdminHandlers) Session(w http.ResponseWriter, r *http.Request) {
	session := h.store.SessionFromRequest(r)
	if session == nil {
		httputil.WriteUnauthorized(w, "no active session")
		return
	}
	httputil.WriteSuccess(w, sessionResponse{
		Username:  session.Username,
		LoginTime: session.LoginTime,
		ExpiresAt: session.ExpiresAt,
	})
}

// Users proxies the backend user list for operators
func (h *AdminHandlers) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.client.Users().List(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// DeleteUser removes a backend user on behalf of an operator
func (h *AdminHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.client.Users().Delete(r.Context(), id); err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.auditEvent(r, audit.Event{
		Type:        audit.EventUserDeleted,
		PrincipalID: h.operatorID(r),
		TargetID:    id,
	})
	httputil.WriteNoContent(w)
}

// GetSettings returns the platform settings
func (h *AdminHandlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	settings := h.settings
	h.mu.RUnlock()
	httputil.WriteSuccess(w, settings)
}

// PatchSettings applies a partial settings update
func (h *AdminHandlers) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch SettingsPatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	if patch.PosterDailyLimit != nil && *patch.PosterDailyLimit < 0 {
		httputil.WriteBadRequest(w, "poster_daily_limit must not be negative")
		return
	}

	h.mu.Lock()
	if patch.MaintenanceMode != nil {
		h.settings.MaintenanceMode = *patch.MaintenanceMode
	}
	if patch.SignupEnabled != nil {
		h.settings.SignupEnabled = *patch.SignupEnabled
	}
	if patch.PosterDailyLimit != nil {
		h.settings.PosterDailyLimit = *patch.PosterDailyLimit
	}
	settings := h.settings
	h.mu.Unlock()

	h.auditEvent(r, audit.Event{
		Type:        audit.EventOrgUpdated,
		PrincipalID: h.operatorID(r),
		Detail:      "platform settings updated",
	})
	httputil.WriteSuccess(w, settings)
}

// Settings returns a read-only snapshot, used by other handlers
func (h *AdminHandlers) Settings() PlatformSettings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings
}

func (h *AdminHandlers) operatorID(r *http.Request) string {
	if session := h.store.SessionFromRequest(r); session != nil {
		return "operator:" + session.Username
	}
	return ""
}

func (h *AdminHandlers) auditEvent(r *http.Request, event audit.Event) {
	event.ClientIP = httputil.ClientIP(r)
	event.RequestID = contextkeys.GetRequestID(r.Context())
	if err := h.audit.Log(r.Context(), event); err != nil {
		h.logger.WithError(err).Error("failed to write audit event")
	}
}

func (h *AdminHandlers) loginOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.AdminLoginsTotal.WithLabelValues(outcome).Inc()
	}
}
