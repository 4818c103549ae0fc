package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frameio/frameio-gateway/pkg/contextkeys"
	"github.com/frameio/frameio-gateway/pkg/events"
)

func newTestClient(t *testing.T, handler http.Handler, production bool) (*Client, *StaticTokenSource, *events.Bus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := NewStaticTokenSource("cached-token")
	bus := events.NewBus(8)
	client := NewClient(Config{
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		Production: production,
		DevUserID:  "dev-user-1",
		DevOrgID:   "dev-org-1",
	}, tokens, bus, nil, nil)
	return client, tokens, bus
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}), true)

	if _, err := client.Users().List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer cached-token" {
		t.Errorf("expected cached token, got %q", gotAuth)
	}
}

func TestClient_ForwardedTokenWins(t *testing.T) {
	var gotAuth string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}), true)

	ctx := contextkeys.WithBearerToken(context.Background(), "user-token")
	if _, err := client.Users().List(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer user-token" {
		t.Errorf("expected forwarded user token, got %q", gotAuth)
	}
}

func TestClient_DevHeaders(t *testing.T) {
	t.Run("attached outside production", func(t *testing.T) {
		var userID, orgID string
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID = r.Header.Get(HeaderDevUserID)
			orgID = r.Header.Get(HeaderDevOrgID)
			w.Write([]byte(`[]`))
		}), false)

		if _, err := client.Users().List(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if userID != "dev-user-1" || orgID != "dev-org-1" {
			t.Errorf("expected dev headers, got user=%q org=%q", userID, orgID)
		}
	})

	t.Run("never attached in production", func(t *testing.T) {
		var userID, orgID string
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID = r.Header.Get(HeaderDevUserID)
			orgID = r.Header.Get(HeaderDevOrgID)
			w.Write([]byte(`[]`))
		}), true)

		if _, err := client.Users().List(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if userID != "" || orgID != "" {
			t.Errorf("dev headers leaked into production: user=%q org=%q", userID, orgID)
		}
	})
}

func TestClient_NetworkFailureClassifiesAsNetwork(t *testing.T) {
	// Point at a closed port
	tokens := NewStaticTokenSource("tok")
	bus := events.NewBus(8)
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, Production: true}, tokens, bus, nil, nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	_, err := client.Users().List(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNetwork(err) {
		t.Errorf("expected network classification, got %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Type != events.ErrorTypeNetwork {
			t.Errorf("expected network event, got %q", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event on the bus")
	}

	// Transport failure must not clear the token
	if tok, _ := tokens.Token(context.Background()); tok != "tok" {
		t.Errorf("token cleared on network failure")
	}
}

func TestClient_401ClearsToken(t *testing.T) {
	client, tokens, bus := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token expired"}`))
	}), true)
	ch, cancel := bus.Subscribe()
	defer cancel()

	_, err := client.Users().List(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	apiErr := err.(*APIError)
	if apiErr.Message != "token expired" {
		t.Errorf("expected detail field as message, got %q", apiErr.Message)
	}

	if tok, _ := tokens.Token(context.Background()); tok != "" {
		t.Error("expected token cache to be cleared after 401")
	}

	select {
	case ev := <-ch:
		if ev.Type != events.ErrorTypeUnauthorized {
			t.Errorf("expected unauthorized event, got %q", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event on the bus")
	}
}

func TestClient_403KeepsToken(t *testing.T) {
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"insufficient permission"}`))
	}), true)

	_, err := client.Users().List(context.Background())
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if tok, _ := tokens.Token(context.Background()); tok != "cached-token" {
		t.Error("403 must not clear the token cache")
	}
}

func TestClient_ServerErrors(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), true)

	_, err := client.Users().List(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Type != events.ErrorTypeServer {
		t.Errorf("expected server classification, got %q", apiErr.Type)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("unexpected status %d", apiErr.Status)
	}
}

func TestClient_ValidationErrorMessagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail wins", `{"detail":"d","message":"m","error":"e"}`, "d"},
		{"message next", `{"message":"m","error":"e"}`, "m"},
		{"error last", `{"error":"e"}`, "e"},
		{"unparseable falls back", `<html>oops</html>`, "request rejected with status 400"},
		{"empty body falls back", ``, "request rejected with status 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(body))
			}), true)

			_, err := client.Users().List(context.Background())
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := err.(*APIError).Message; got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeUsers(t *testing.T) {
	t.Run("array shape", func(t *testing.T) {
		users, err := decodeUsers([]byte(`[{"id":"1","username":"ada"},{"id":"2"}]`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(users) != 2 || users[0].Username != "ada" {
			t.Errorf("unexpected users %+v", users)
		}
	})

	t.Run("single object shape", func(t *testing.T) {
		users, err := decodeUsers([]byte(`{"id":"1","email":"a@b.c"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(users) != 1 || users[0].Email != "a@b.c" {
			t.Errorf("unexpected users %+v", users)
		}
	})
}

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"name wins", User{Name: "Ada", Username: "ada", Email: "a@b.c"}, "Ada"},
		{"username next", User{Username: "ada", Email: "a@b.c"}, "ada"},
		{"email last", User{Email: "a@b.c"}, "a@b.c"},
		{"all empty", User{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPoster_NotBoundByClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		w.Write([]byte(`{"id":"p1","image_url":"https://cdn/p1.png"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL: srv.URL,
		Timeout: 50 * time.Millisecond,
	}, NewStaticTokenSource("tok"), events.NewBus(8), nil, nil)

	// The shared client gives up well before the backend answers. The
	// poster path must still complete because its deadline comes from the
	// per-operation timeout, not the client default.
	if _, err := client.Users().List(context.Background()); !IsNetwork(err) {
		t.Fatalf("expected plain call to time out, got %v", err)
	}

	poster, err := client.Poster(PosterTimeouts{
		Generate:  2 * time.Second,
		Edit:      2 * time.Second,
		Composite: 2 * time.Second,
		Status:    2 * time.Second,
	}).Generate(context.Background(), PosterRequest{Prompt: "silk scarf"})
	if err != nil {
		t.Fatalf("generate should outlive the client timeout: %v", err)
	}
	if poster.ID != "p1" {
		t.Errorf("unexpected poster %+v", poster)
	}
}

func TestPoster_OwnDeadlineStillApplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"available":true}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	}, NewStaticTokenSource("tok"), events.NewBus(8), nil, nil)

	_, err := client.Poster(PosterTimeouts{
		Generate:  50 * time.Millisecond,
		Edit:      50 * time.Millisecond,
		Composite: 50 * time.Millisecond,
		Status:    50 * time.Millisecond,
	}).Status(context.Background())
	if !IsNetwork(err) {
		t.Fatalf("expected poster deadline to classify as network error, got %v", err)
	}
}
