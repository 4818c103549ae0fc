package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/frameio/frameio-gateway/pkg/audit"
	"github.com/frameio/frameio-gateway/pkg/contextkeys"
	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/principal"
	"github.com/frameio/frameio-gateway/pkg/profile"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

// DashboardHandlers serves the product dashboard's resource routes.
// Requests arrive already authenticated; the router applies the role
// and permission guards before these run.
type DashboardHandlers struct {
	client   *upstream.Client
	resolver *profile.Resolver
	audit    audit.Logger
	logger   *logrus.Logger
	timeouts upstream.PosterTimeouts
}

// NewDashboardHandlers builds the dashboard handler set. A zero-value
// timeouts falls back to the poster defaults.
func NewDashboardHandlers(client *upstream.Client, resolver *profile.Resolver, auditLogger audit.Logger, logger *logrus.Logger, timeouts upstream.PosterTimeouts) *DashboardHandlers {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	if timeouts == (upstream.PosterTimeouts{}) {
		timeouts = upstream.DefaultPosterTimeouts()
	}
	return &DashboardHandlers{
		client:   client,
		resolver: resolver,
		audit:    auditLogger,
		logger:   logger,
		timeouts: timeouts,
	}
}

// Me returns the caller's resolved profile
func (h *DashboardHandlers) Me(w http.ResponseWriter, r *http.Request) {
	pr := principal.FromContext(r.Context())
	if pr == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	prof, err := h.resolver.Resolve(r.Context(), pr)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, prof)
}

// RefreshMe re-fetches the caller's profile, bypassing the cache. On
// backend failure the stale profile is still returned, flagged so the
// client knows it is looking at old data.
func (h *DashboardHandlers) RefreshMe(w http.ResponseWriter, r *http.Request) {
	pr := principal.FromContext(r.Context())
	if pr == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	prof, err := h.resolver.Refresh(r.Context(), pr)
	if err != nil {
		if prof != nil {
			httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"profile": prof,
				"stale":   true,
			})
			return
		}
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"profile": prof,
		"stale":   false,
	})
}

// Users lists the organization's users
func (h *DashboardHandlers) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.client.Users().List(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// UpdateUser patches a user record and invalidates its cached profile
func (h *DashboardHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var patch upstream.UserPatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}

	user, err := h.client.Users().Update(r.Context(), id, patch)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	// Role changes must not be served from a stale cache entry.
	h.resolver.Invalidate(r.Context(), id)
	h.auditEvent(r, audit.Event{
		Type:     audit.EventUserUpdated,
		TargetID: id,
	})
	httputil.WriteSuccess(w, user)
}

// DeleteUser removes a user
func (h *DashboardHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.client.Users().Delete(r.Context(), id); err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.resolver.Invalidate(r.Context(), id)
	h.auditEvent(r, audit.Event{
		Type:     audit.EventUserDeleted,
		TargetID: id,
	})
	httputil.WriteNoContent(w)
}

// Organization returns the caller's organization
func (h *DashboardHandlers) Organization(w http.ResponseWriter, r *http.Request) {
	org, err := h.client.Organizations().Current(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// UpdateOrganization patches the caller's organization
func (h *DashboardHandlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var patch upstream.OrganizationPatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	org, err := h.client.Organizations().UpdateCurrent(r.Context(), patch)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	h.auditEvent(r, audit.Event{Type: audit.EventOrgUpdated})
	httputil.WriteSuccess(w, org)
}

// Billing reports the organization's plan. The backend has no separate
// billing endpoint; the plan rides on the organization record.
func (h *DashboardHandlers) Billing(w http.ResponseWriter, r *http.Request) {
	org, err := h.client.Organizations().Current(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{
		"organization_id": org.ID,
		"plan":            org.Plan,
	})
}

// CompanyProfile returns the company profile used for poster generation
func (h *DashboardHandlers) CompanyProfile(w http.ResponseWriter, r *http.Request) {
	cp, err := h.client.CompanyProfiles().Get(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, cp)
}

// CompanyProfileStatus reports completeness of the company profile
func (h *DashboardHandlers) CompanyProfileStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.client.CompanyProfiles().Status(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, status)
}

// GeneratePoster proxies a poster generation request
func (h *DashboardHandlers) GeneratePoster(w http.ResponseWriter, r *http.Request) {
	var req upstream.PosterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		httputil.WriteBadRequest(w, "prompt is required")
		return
	}
	poster, err := h.client.Poster(h.timeouts).Generate(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, poster)
}

// EditPoster proxies a poster edit request
func (h *DashboardHandlers) EditPoster(w http.ResponseWriter, r *http.Request) {
	var req upstream.PosterEditRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	poster, err := h.client.Poster(h.timeouts).Edit(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, poster)
}

// CompositePoster proxies a composite poster request
func (h *DashboardHandlers) CompositePoster(w http.ResponseWriter, r *http.Request) {
	var req upstream.PosterCompositeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	poster, err := h.client.Poster(h.timeouts).Composite(r.Context(), req)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, poster)
}

// PosterStatus reports the generation backend's availability
func (h *DashboardHandlers) PosterStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.client.Poster(h.timeouts).Status(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, status)
}

func (h *DashboardHandlers) auditEvent(r *http.Request, event audit.Event) {
	if pr := principal.FromContext(r.Context()); pr != nil {
		event.PrincipalID = pr.ID
	}
	event.ClientIP = httputil.ClientIP(r)
	event.RequestID = contextkeys.GetRequestID(r.Context())
	if err := h.audit.Log(r.Context(), event); err != nil {
		h.logger.WithError(err).Error("failed to write audit event")
	}
}
