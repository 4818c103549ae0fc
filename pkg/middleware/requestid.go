// Package middleware holds the request-scoped plumbing shared by every
// route: request IDs, access logging and rate limiting.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/frameio/frameio-gateway/pkg/contextkeys"
)

// HeaderRequestID is echoed on every response and forwarded upstream
const HeaderRequestID = "X-Request-Id"

// RequestID assigns each request an ID, honoring one supplied by a
// trusted proxy in front of the gateway.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
