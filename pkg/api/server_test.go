package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frameio/frameio-gateway/pkg/adminsession"
	"github.com/frameio/frameio-gateway/pkg/events"
	"github.com/frameio/frameio-gateway/pkg/guard"
	"github.com/frameio/frameio-gateway/pkg/observability"
	"github.com/frameio/frameio-gateway/pkg/profile"
	"github.com/frameio/frameio-gateway/pkg/upstream"
)

const (
	testAdminUser = "tsg_admin"
	testAdminPass = "correctpass"
	testSecret    = "0123456789abcdef0123456789abcdef"
)

// fakeBackend is a minimal stand-in for the Django API
func fakeBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"u1","name":"Asha Verma","role":"Admin","is_active":true},
			{"id":"u2","name":"Ravi Kumar","role":"Designer","is_active":false}
		]`)
	})
	mux.HandleFunc("/api/organizations/current/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"org-1","name":"Threadworks","industry":"textile","plan":"pro"}`)
	})
	mux.HandleFunc("/api/ai/ai-poster/status/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"available":true,"model":"poster-v2"}`)
	})
	return mux
}

type testEnv struct {
	server *Server
	store  *adminsession.Store
	router http.Handler
}

func newTestEnv(t *testing.T, backend http.Handler) *testEnv {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	quietSlog := observability.NewLogger(observability.ErrorLevel, io.Discard)
	quietLogrus := logrus.New()
	quietLogrus.SetOutput(io.Discard)

	client := upstream.NewClient(
		upstream.Config{BaseURL: srv.URL, Timeout: 2 * time.Second},
		upstream.NewStaticTokenSource("service-token"),
		events.NewBus(0),
		nil,
		quietLogrus,
	)

	store, err := adminsession.NewStore(testAdminUser, testAdminPass, testSecret, 24*time.Hour, quietSlog)
	require.NoError(t, err)

	resolver := profile.NewResolver(client.Users(), nil, nil, quietSlog)

	server := NewServer(Deps{
		Admin:      NewAdminHandlers(store, client, nil, quietLogrus, nil),
		Dashboard:  NewDashboardHandlers(client, resolver, nil, quietLogrus, upstream.PosterTimeouts{}),
		AdminGuard: guard.NewAdminGuard(store, quietSlog, nil),
		UserRoutes: guard.RequireRoles(resolver, quietSlog, nil, "/", "Admin", "Manager"),
		OrgRoutes:  guard.RequireRoles(resolver, quietSlog, nil, "/", "Admin"),
		PermGuard:  guard.NewPermissionGuard(resolver, quietSlog, nil),
		Logger:     quietSlog,
	})

	return &testEnv{server: server, store: store, router: server.Router()}
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": testAdminUser, "password": testAdminPass})
	req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == adminsession.CookieName {
			return ck
		}
	}
	t.Fatal("login response carried no session cookie")
	return nil
}

func TestAdminLoginSuccess(t *testing.T) {
	env := newTestEnv(t, fakeBackend())
	ck := env.login(t)
	assert.NotEmpty(t, ck.Value)
	assert.True(t, ck.HttpOnly)
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, fakeBackend())

	for name, creds := range map[string][2]string{
		"wrong password": {testAdminUser, "wrong"},
		"wrong username": {"intruder", testAdminPass},
		"both wrong":     {"intruder", "wrong"},
	} {
		t.Run(name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"username": creds[0], "password": creds[1]})
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body)))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAdminSessionEndpoint(t *testing.T) {
	env := newTestEnv(t, fakeBackend())

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no cookie means no session")

	ck := env.login(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/session", nil)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var session map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, testAdminUser, session["username"])
}

func TestAdminGuardedRoutesChallenge(t *testing.T) {
	env := newTestEnv(t, fakeBackend())

	for _, path := range []string{"/admin/users", "/admin/analytics", "/admin/settings"} {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Empty(t, rec.Header().Get("Location"), "%s must not redirect", path)
	}
}

func TestAdminUsersProxied(t *testing.T) {
	env := newTestEnv(t, fakeBackend())
	ck := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestAdminAnalyticsAggregates(t *testing.T) {
	env := newTestEnv(t, fakeBackend())
	ck := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/analytics", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Users)
	assert.Equal(t, 2, resp.Users.Total)
	assert.Equal(t, 1, resp.Users.Active)
	require.NotNil(t, resp.Organization)
	assert.Equal(t, "pro", resp.Organization.Plan)
	require.NotNil(t, resp.PosterService)
	assert.True(t, resp.PosterService.Available)
}

func TestAdminAnalyticsDegradesPartially(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id":"u1","role":"Admin","is_active":true}]`)
	})
	// Everything else 500s.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	env := newTestEnv(t, mux)
	ck := env.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/analytics", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "partial data still serves")

	var resp AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Users)
	assert.Nil(t, resp.Organization)
	assert.NotEmpty(t, resp.OrgError)
	assert.NotEmpty(t, resp.PosterError)
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t, fakeBackend())
	ck := env.login(t)

	patch := `{"maintenance_mode":true,"poster_daily_limit":25}`
	req := httptest.NewRequest(http.MethodPatch, "/admin/settings", bytes.NewBufferString(patch))
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings PlatformSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.True(t, settings.MaintenanceMode)
	assert.Equal(t, 25, settings.PosterDailyLimit)
	assert.True(t, settings.SignupEnabled, "unpatched fields keep their value")
}

func TestAdminSettingsRejectsNegativeLimit(t *testing.T) {
	env := newTestEnv(t, fakeBackend())
	ck := env.login(t)

	req := httptest.NewRequest(http.MethodPatch, "/admin/settings", bytes.NewBufferString(`{"poster_daily_limit":-1}`))
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	env := newTestEnv(t, fakeBackend())
	ck := env.login(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == adminsession.CookieName {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestDashboardRouteGuardRedirects(t *testing.T) {
	env := newTestEnv(t, fakeBackend())

	// No identity middleware in the test env, so the request reaches the
	// route guard unauthenticated.
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/users", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}
