package identity

import (
	"net/http"
	"strings"

	"github.com/frameio/frameio-gateway/pkg/contextkeys"
	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

// Middleware authenticates product requests. A verified identity
// becomes a principal on the request context; requests without a
// usable credential pass through unauthenticated and the guards
// decide what happens to them.
//
// Credential precedence: Authorization bearer header, then the ID
// token session cookie, then (outside production only) the dev bypass
// headers.
func (p *Provider) Middleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := rawToken(r)
			if raw != "" {
				pr, err := p.authenticate(r, raw)
				if err != nil {
					p.verifyOutcome(metrics, "failure")
					p.logger.WithError(err).WithField("path", r.URL.Path).
						Debug("token verification failed")
					next.ServeHTTP(w, r)
					return
				}
				p.verifyOutcome(metrics, "success")
				ctx := contextkeys.WithPrincipal(r.Context(), pr)
				ctx = contextkeys.WithBearerToken(ctx, raw)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if pr := p.devPrincipal(r); pr != nil {
				ctx := contextkeys.WithPrincipal(r.Context(), pr)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (p *Provider) authenticate(r *http.Request, raw string) (*principal.Principal, error) {
	idToken, err := p.verifier.Verify(r.Context(), raw)
	if err != nil {
		return nil, err
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}

	username := claims.Email
	if claims.Name != "" {
		username = claims.Name
	}

	return &principal.Principal{
		ID:        claims.Subject,
		Username:  username,
		OrgID:     claims.OrgID,
		ExpiresAt: idToken.Expiry,
		Issuer:    principal.IssuerProduct,
	}, nil
}

// devPrincipal fabricates an identity from the dev bypass headers.
// Strictly disabled in production: the headers are ignored there no
// matter what they carry. Dev identities hold no roles of their own,
// the profile resolver still decides what they may do.
func (p *Provider) devPrincipal(r *http.Request) *principal.Principal {
	if p.cfg.Production {
		return nil
	}

	userID := r.Header.Get(upstream.HeaderDevUserID)
	if userID == "" {
		userID = p.cfg.DevUserID
	}
	if userID == "" {
		return nil
	}

	orgID := r.Header.Get(upstream.HeaderDevOrgID)
	if orgID == "" {
		orgID = p.cfg.DevOrgID
	}

	return &principal.Principal{
		ID:     userID,
		OrgID:  orgID,
		Issuer: principal.IssuerProduct,
	}
}

func (p *Provider) verifyOutcome(metrics *observability.Metrics, outcome string) {
	if metrics != nil {
		metrics.TokenVerifyTotal.WithLabelValues(outcome).Inc()
	}
}

func rawToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if ck, err := r.Cookie(IDTokenCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	return ""
}
