// Package identity establishes who the caller is. Product users
// authenticate against the organization's OIDC identity provider;
// their verified identity is attached to the request context as a
// principal for the guards downstream.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/observability"
)

const (
	// IDTokenCookie carries the raw ID token for browser sessions
	// established through the login flow.
	IDTokenCookie = "frameio-id-token"

	stateCookie = "frameio-oauth-state"
)

// Config configures the OIDC relying party
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Production gates the dev identity bypass and the cookie Secure flag.
	Production bool
	DevUserID  string
	DevOrgID   string
}

// tokenVerifier is the subset of the OIDC verifier the authenticator
// needs, split out so tests can supply a locally keyed verifier.
type tokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Provider wraps the OIDC discovery document, verifier and OAuth2
// authorization-code flow for the configured identity provider.
type Provider struct {
	cfg      Config
	verifier tokenVerifier
	oauth    *oauth2.Config
	logger   *observability.Logger
}

// NewProvider discovers the issuer and prepares the verifier and the
// authorization-code flow.
func NewProvider(ctx context.Context, cfg Config, logger *observability.Logger) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed for %s: %w", cfg.IssuerURL, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &Provider{
		cfg:      cfg,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		logger: logger,
	}, nil
}

// newProviderWithVerifier wires a pre-built verifier, used by tests to
// avoid network discovery.
func newProviderWithVerifier(cfg Config, verifier tokenVerifier, logger *observability.Logger) *Provider {
	return &Provider{cfg: cfg, verifier: verifier, logger: logger}
}

// idClaims are the token claims the gateway consumes
type idClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	OrgID   string `json:"org_id"`
}

// LoginHandler starts the authorization-code flow. State rides in a
// short-lived cookie and is checked on callback.
func (p *Provider) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p.oauth == nil {
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "identity provider not configured")
			return
		}
		state := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   300,
			HttpOnly: true,
			Secure:   p.cfg.Production,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusFound)
	}
}

// CallbackHandler finishes the flow: it checks state, exchanges the
// code, verifies the ID token and stores it in a session cookie.
func (p *Provider) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p.oauth == nil {
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "identity provider not configured")
			return
		}

		stateCk, err := r.Cookie(stateCookie)
		if err != nil || stateCk.Value == "" || r.URL.Query().Get("state") != stateCk.Value {
			httputil.WriteBadRequest(w, "state mismatch")
			return
		}

		token, err := p.oauth.Exchange(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			p.logger.WithError(err).Warn("oauth code exchange failed")
			httputil.WriteUnauthorized(w, "code exchange failed")
			return
		}

		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok {
			httputil.WriteUnauthorized(w, "identity provider returned no id_token")
			return
		}
		if _, err := p.verifier.Verify(r.Context(), rawIDToken); err != nil {
			p.logger.WithError(err).Warn("id token verification failed on callback")
			httputil.WriteUnauthorized(w, "invalid id token")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     IDTokenCookie,
			Value:    rawIDToken,
			Path:     "/",
			Expires:  time.Now().Add(12 * time.Hour),
			HttpOnly: true,
			Secure:   p.cfg.Production,
			SameSite: http.SameSiteLaxMode,
		})
		// Expire the state cookie.
		http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler drops the session cookie
func (p *Provider) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     IDTokenCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   p.cfg.Production,
			SameSite: http.SameSiteLaxMode,
		})
		httputil.WriteSuccess(w, map[string]string{"status": "logged out"})
	}
}
