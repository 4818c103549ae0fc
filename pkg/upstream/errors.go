package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/frameio/frameio-gateway/pkg/events"
)

// APIError is the normalized failure shape surfaced by every upstream
// call. The taxonomy matches what the notification layer understands:
// network, unauthorized, forbidden, server, validation.
type APIError struct {
	Type     events.ErrorType
	Status   int
	Endpoint string
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s: %s (%d %s)", e.Endpoint, e.Message, e.Status, e.Type)
	}
	return fmt.Sprintf("upstream %s: %s (%s)", e.Endpoint, e.Message, e.Type)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Event converts the error into its bus payload
func (e *APIError) Event() events.APIError {
	return events.APIError{
		Type:     e.Type,
		Endpoint: e.Endpoint,
		Message:  e.Message,
		Status:   e.Status,
	}
}

// IsUnauthorized reports whether err is an upstream 401
func IsUnauthorized(err error) bool {
	return errType(err) == events.ErrorTypeUnauthorized
}

// IsForbidden reports whether err is an upstream 403
func IsForbidden(err error) bool {
	return errType(err) == events.ErrorTypeForbidden
}

// IsNetwork reports whether err is a transport-level failure
func IsNetwork(err error) bool {
	return errType(err) == events.ErrorTypeNetwork
}

// IsValidation reports whether err is a structured 4xx
func IsValidation(err error) bool {
	return errType(err) == events.ErrorTypeValidation
}

func errType(err error) events.ErrorType {
	apiErr, ok := err.(*APIError)
	if !ok {
		return ""
	}
	return apiErr.Type
}

// networkError wraps a transport failure (connection refused, DNS,
// timeout) before any HTTP status exists.
func networkError(endpoint string, err error) *APIError {
	return &APIError{
		Type:     events.ErrorTypeNetwork,
		Endpoint: endpoint,
		Message:  "backend unreachable: " + err.Error(),
		Err:      err,
	}
}

// classifyStatus maps a non-2xx response to the taxonomy. The body, when
// structured, supplies the message with precedence detail > message > error;
// otherwise a generic message per class is used.
func classifyStatus(endpoint string, status int, body []byte) *APIError {
	e := &APIError{
		Status:   status,
		Endpoint: endpoint,
		Message:  extractMessage(body),
	}

	switch {
	case status == http.StatusUnauthorized:
		e.Type = events.ErrorTypeUnauthorized
		if e.Message == "" {
			e.Message = "authentication required"
		}
	case status == http.StatusForbidden:
		e.Type = events.ErrorTypeForbidden
		if e.Message == "" {
			e.Message = "insufficient permission"
		}
	case status >= 500:
		e.Type = events.ErrorTypeServer
		if e.Message == "" {
			e.Message = "backend error"
		}
	default:
		e.Type = events.ErrorTypeValidation
		if e.Message == "" {
			e.Message = fmt.Sprintf("request rejected with status %d", status)
		}
	}

	return e
}

// errorBody is the shape Django error responses take. Field precedence
// when several are present: detail, then message, then error.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	switch {
	case eb.Detail != "":
		return eb.Detail
	case eb.Message != "":
		return eb.Message
	case eb.Error != "":
		return eb.Error
	}
	return ""
}
