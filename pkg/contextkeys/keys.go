// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/frameio/frameio-gateway/pkg/contextkeys"
//   ctx = contextkeys.WithPrincipal(ctx, p)
//   p := ctx.Value(contextkeys.PrincipalKey).(*principal.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *principal.Principal
	// Set by: identity middleware (pkg/identity) and guard.AdminGuard (pkg/guard)
	// Required by: all guarded endpoints, permission checks, audit trail
	// Type: *principal.Principal
	PrincipalKey Key = "principal"

	// AdminSessionKey contains *adminsession.Session
	// Set by: guard.AdminGuard (pkg/guard/admin.go)
	// Required by: admin surface handlers
	// Type: *adminsession.Session
	AdminSessionKey Key = "admin_session"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID (pkg/middleware/requestid.go)
	// Used by: logger, audit trail, upstream request propagation
	// Type: string
	RequestIDKey Key = "request_id"

	// BearerTokenKey contains the raw product IdP bearer token
	// Set by: identity middleware after token verification
	// Used by: upstream client when forwarding calls on behalf of the user
	// Type: string
	BearerTokenKey Key = "bearer_token"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, p interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// WithAdminSession adds the verified admin session to the context
func WithAdminSession(ctx context.Context, s interface{}) context.Context {
	return context.WithValue(ctx, AdminSessionKey, s)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithBearerToken adds the raw bearer token to the context
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, BearerTokenKey, token)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetBearerToken retrieves the raw bearer token from context
func GetBearerToken(ctx context.Context) string {
	if token, ok := ctx.Value(BearerTokenKey).(string); ok {
		return token
	}
	return ""
}
