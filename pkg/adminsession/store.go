// Package adminsession issues and verifies the operator credential that
// gates the hidden /admin surface.
//
// The credential is a short-lived HMAC-signed token carried in an HTTP-only
// cookie. It is deliberately independent of the product identity provider:
// the operator is not a tenant user. Verification is fail-closed; an
// expired and a tampered token are indistinguishable to callers, both
// yield nil.
package adminsession

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/principal"
)

// CookieName is the admin session cookie
const CookieName = "admin-session"

// Session is the verified operator credential
type Session struct {
	Username  string
	LoginTime time.Time
	ExpiresAt time.Time
}

// Claims is the JWT payload for admin sessions
type Claims struct {
	Username  string `json:"username"`
	LoginTime int64  `json:"login_time"`
	jwt.RegisteredClaims
}

// Store signs and verifies operator sessions
type Store struct {
	username []byte
	password []byte
	secret   []byte
	ttl      time.Duration
	secure   bool
	logger   *observability.Logger

	// now is swapped in tests to control expiry
	now func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithInsecureCookie drops the Secure cookie flag for local development
func WithInsecureCookie() Option {
	return func(s *Store) { s.secure = false }
}

// NewStore creates a session store. The secret has no default; config
// validation rejects an empty one before this is reached, but the
// constructor double-checks since a forged empty-key HMAC is worthless.
func NewStore(username, password, secret string, ttl time.Duration, logger *observability.Logger, opts ...Option) (*Store, error) {
	if secret == "" {
		return nil, errors.New("adminsession: signing secret is required")
	}
	if username == "" || password == "" {
		return nil, errors.New("adminsession: operator credentials are required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	s := &Store{
		username: []byte(username),
		password: []byte(password),
		secret:   []byte(secret),
		ttl:      ttl,
		secure:   true,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// VerifyCredentials compares the supplied pair against the configured
// operator credential. Constant-time on both fields so a timing probe
// cannot separate "wrong user" from "wrong password".
func (s *Store) VerifyCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), s.username) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), s.password) == 1
	return userOK && passOK
}

// CreateSession builds a signed session token for the operator. Pure
// function; the caller persists it via SetCookie.
func (s *Store) CreateSession(username string) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Username:  username,
		LoginTime: now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign admin session: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a raw token. Returns nil on any failure:
// malformed token, wrong signature, or expiry. Failures are logged,
// never surfaced to the authorization path.
func (s *Store) Verify(tokenStr string) *Session {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if s.logger != nil {
			s.logger.WithError(err).Debug("admin session verification failed")
		}
		return nil
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil
	}

	// Belt and braces: ParseWithClaims already rejects expired and
	// exp-less tokens, but the expiry invariant is the whole point of
	// this store.
	if claims.ExpiresAt == nil {
		return nil
	}
	expiresAt := claims.ExpiresAt.Time
	if !s.now().Before(expiresAt) {
		return nil
	}

	return &Session{
		Username:  claims.Username,
		LoginTime: time.Unix(claims.LoginTime, 0).UTC(),
		ExpiresAt: expiresAt,
	}
}

// SessionFromRequest reads and verifies the session cookie. Nil when the
// cookie is absent or the token does not verify.
func (s *Store) SessionFromRequest(r *http.Request) *Session {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	return s.Verify(c.Value)
}

// IsAuthenticated reports whether the request carries a valid session
func (s *Store) IsAuthenticated(r *http.Request) bool {
	return s.SessionFromRequest(r) != nil
}

// Principal converts a verified session into the shared principal
// contract. The platform admin is just another permission set on the
// same shape the product issuer produces.
func (sess *Session) Principal() *principal.Principal {
	return &principal.Principal{
		ID:        "operator:" + sess.Username,
		Username:  sess.Username,
		ExpiresAt: sess.ExpiresAt,
		Issuer:    principal.IssuerOperator,
		Permissions: []principal.Permission{
			principal.PermPlatformAdmin,
			principal.PermManageUsers,
			principal.PermViewAnalytics,
			principal.PermManageSettings,
		},
	}
}
