package api

import (
	"errors"
	"net/http"

	"github.com/frameio/frameio-gateway/pkg/httputil"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

// writeUpstreamError maps a backend client error onto the gateway's
// own response. The taxonomy carries through: auth failures stay 401,
// permission failures stay 403, backend trouble surfaces as 502 and
// rejected input as 400 with the extracted message.
func writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		httputil.WriteInternalError(w, err)
		return
	}

	switch {
	case upstream.IsUnauthorized(apiErr):
		httputil.WriteUnauthorized(w, apiErr.Message)
	case upstream.IsForbidden(apiErr):
		httputil.WriteForbidden(w, apiErr.Message)
	case upstream.IsNetwork(apiErr):
		httputil.WriteBadGateway(w, "backend unreachable")
	case upstream.IsValidation(apiErr):
		httputil.WriteBadRequest(w, apiErr.Message)
	default:
		httputil.WriteBadGateway(w, apiErr.Message)
	}
}
