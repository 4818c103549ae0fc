// Package upstream is the normalized client for the Django resource
// backend. All product data (users, organizations, billing, poster
// generation) is owned there; the gateway only authenticates, authorizes
// and forwards.
//
// Every failure path does two things: it returns a typed *APIError to the
// caller AND publishes the event to the error bus for the ambient
// notification surface.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/frameio/frameio-gateway/pkg/contextkeys"
	"github.com/frameio/frameio-gateway/pkg/events"
	"github.com/frameio/frameio-gateway/pkg/observability"
)

// Dev-bypass headers. Outside production these substitute a fixed test
// identity so the surface can be exercised without a real IdP session.
// They must never be attached in a production build.
const (
	HeaderDevUserID = "X-Dev-User-Id"
	HeaderDevOrgID  = "X-Dev-Org-Id"
)

// TokenSource supplies the service bearer token for upstream calls and
// can be invalidated after a 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Clear()
}

// StaticTokenSource wraps a fixed token, mainly for tests and dev
type StaticTokenSource struct {
	mu    sync.Mutex
	token string
}

// NewStaticTokenSource creates a token source around a fixed credential
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *StaticTokenSource) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Config configures the upstream client
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Production controls the dev-bypass gate. When true, DevUserID and
	// DevOrgID are discarded no matter what configuration supplied them.
	Production bool
	DevUserID  string
	DevOrgID   string
}

// Client is the shared HTTP client for the resource backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	// slowClient has no client-level timeout. The poster endpoints run
	// longer than the shared default allows; their deadlines come from
	// per-call contexts, which can only shorten a client timeout, never
	// extend it.
	slowClient *http.Client
	tokens     TokenSource
	bus        *events.Bus
	metrics    *observability.Metrics
	logger     *logrus.Logger

	devUserID string
	devOrgID  string
}

// NewClient creates the upstream client. The transport is traced via
// otelhttp so upstream spans attach to the request trace.
func NewClient(cfg Config, tokens TokenSource, bus *events.Bus, metrics *observability.Metrics, logger *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		slowClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:  tokens,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
	}

	if cfg.Production {
		if cfg.DevUserID != "" || cfg.DevOrgID != "" {
			logger.Warn("dev-bypass identity configured in production, discarding")
		}
	} else {
		c.devUserID = cfg.DevUserID
		c.devOrgID = cfg.DevOrgID
	}

	return c
}

// Ping checks backend reachability for the health endpoint
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/api/ai/ai-poster/status/", nil, nil)
	if err != nil && IsNetwork(err) {
		return err
	}
	// Auth failures still prove the backend is up
	return nil
}

// do issues one request and normalizes the outcome. A nil out skips body
// decoding. The shared client timeout bounds every call.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return c.send(ctx, c.httpClient, method, path, body, out)
}

// doSlow is do without the client-level timeout. The caller must bound the
// call with a context deadline.
func (c *Client) doSlow(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return c.send(ctx, c.slowClient, method, path, body, out)
}

func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	c.attachAuth(ctx, req)

	start := time.Now()
	resp, err := hc.Do(req)
	if c.metrics != nil {
		c.metrics.UpstreamRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return c.fail(networkError(path, err))
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.UpstreamRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		apiErr := classifyStatus(path, resp.StatusCode, respBody)

		// Known-bad credentials must not be retried on subsequent calls
		if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
			c.tokens.Clear()
			if c.metrics != nil {
				c.metrics.TokenCacheClearTotal.Inc()
			}
		}

		return c.fail(apiErr)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}

	return nil
}

// attachAuth sets the bearer token, preferring the caller's forwarded
// credential over the service token, plus dev headers outside production.
func (c *Client) attachAuth(ctx context.Context, req *http.Request) {
	token := contextkeys.GetBearerToken(ctx)
	if token == "" && c.tokens != nil {
		if t, err := c.tokens.Token(ctx); err == nil {
			token = t
		} else {
			c.logger.WithError(err).Warn("upstream token source failed")
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.devUserID != "" {
		req.Header.Set(HeaderDevUserID, c.devUserID)
	}
	if c.devOrgID != "" {
		req.Header.Set(HeaderDevOrgID, c.devOrgID)
	}
}

// fail logs, publishes and returns the normalized error
func (c *Client) fail(apiErr *APIError) error {
	c.logger.WithFields(logrus.Fields{
		"endpoint": apiErr.Endpoint,
		"type":     apiErr.Type,
		"status":   apiErr.Status,
	}).Warn(apiErr.Message)

	if c.metrics != nil {
		c.metrics.UpstreamErrorsTotal.WithLabelValues(string(apiErr.Type)).Inc()
	}
	if c.bus != nil {
		c.bus.Publish(apiErr.Event())
	}
	return apiErr
}
