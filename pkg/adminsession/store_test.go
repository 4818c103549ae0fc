package adminsession

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := NewStore("tsg_admin", "correctpass", testSecret, 24*time.Hour, nil, opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestNewStore_RequiresSecret(t *testing.T) {
	if _, err := NewStore("u", "p", "", time.Hour, nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewStore("", "p", testSecret, time.Hour, nil); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestVerifyCredentials(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"correct pair", "tsg_admin", "correctpass", true},
		{"wrong password", "tsg_admin", "wrongpass", false},
		{"wrong username", "someone", "correctpass", false},
		{"both wrong", "someone", "wrongpass", false},
		{"empty pair", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.VerifyCredentials(tt.username, tt.password); got != tt.want {
				t.Errorf("VerifyCredentials(%q, %q) = %v, want %v", tt.username, tt.password, got, tt.want)
			}
		})
	}
}

func TestSessionExpiry(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := t0
	s := newTestStore(t, WithClock(func() time.Time { return current }))

	token, err := s.CreateSession("tsg_admin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	t.Run("valid just before expiry", func(t *testing.T) {
		current = t0.Add(24*time.Hour - time.Minute)
		sess := s.Verify(token)
		if sess == nil {
			t.Fatal("expected valid session at T0+23h59m")
		}
		if sess.Username != "tsg_admin" {
			t.Errorf("unexpected username %q", sess.Username)
		}
		if !sess.ExpiresAt.Equal(t0.Add(24 * time.Hour)) {
			t.Errorf("unexpected expiry %v", sess.ExpiresAt)
		}
	})

	t.Run("invalid at expiry", func(t *testing.T) {
		current = t0.Add(24 * time.Hour)
		if sess := s.Verify(token); sess != nil {
			t.Errorf("expected nil at exact expiry, got %+v", sess)
		}
	})

	t.Run("invalid after expiry", func(t *testing.T) {
		current = t0.Add(24*time.Hour + time.Minute)
		if sess := s.Verify(token); sess != nil {
			t.Errorf("expected nil at T0+24h01m, got %+v", sess)
		}
	})
}

func TestVerify_TamperedToken(t *testing.T) {
	s := newTestStore(t)

	// Token signed under a different secret; its embedded expiry is far
	// in the future but must not matter.
	other, err := NewStore("tsg_admin", "correctpass", strings.Repeat("k", 32), 100*365*24*time.Hour, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	forged, err := other.CreateSession("tsg_admin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if sess := s.Verify(forged); sess != nil {
		t.Errorf("expected nil for token signed with wrong secret, got %+v", sess)
	}
}

func TestVerify_MalformedToken(t *testing.T) {
	s := newTestStore(t)

	for _, raw := range []string{"", "garbage", "a.b.c", "ey.ey.sig"} {
		if sess := s.Verify(raw); sess != nil {
			t.Errorf("expected nil for malformed token %q", raw)
		}
	}
}

func TestVerify_MissingExpiry(t *testing.T) {
	s := newTestStore(t)

	// Correctly signed but carries no exp claim. Tokens without an
	// expiry must be rejected, not treated as unbounded sessions.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:  "tsg_admin",
		LoginTime: time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	if sess := s.Verify(signed); sess != nil {
		t.Errorf("expected nil for token without expiry, got %+v", sess)
	}
}

func TestSessionFromRequest_Idempotent(t *testing.T) {
	s := newTestStore(t)
	token, err := s.CreateSession("tsg_admin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	req := httptest.NewRequest("GET", "/admin", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})

	first := s.SessionFromRequest(req)
	second := s.SessionFromRequest(req)
	if first == nil || second == nil {
		t.Fatal("expected both reads to verify")
	}
	if *first != *second {
		t.Errorf("successive reads differ: %+v vs %+v", first, second)
	}
}

func TestSessionFromRequest_NoCookie(t *testing.T) {
	s := newTestStore(t)
	req := httptest.NewRequest("GET", "/admin", nil)
	if sess := s.SessionFromRequest(req); sess != nil {
		t.Errorf("expected nil without cookie, got %+v", sess)
	}
	if s.IsAuthenticated(req) {
		t.Error("expected IsAuthenticated to be false")
	}
}

func TestSetCookie_Flags(t *testing.T) {
	t.Run("secure by default", func(t *testing.T) {
		s := newTestStore(t)
		w := httptest.NewRecorder()
		s.SetCookie(w, "tok")

		cookies := w.Result().Cookies()
		if len(cookies) != 1 {
			t.Fatalf("expected 1 cookie, got %d", len(cookies))
		}
		c := cookies[0]
		if c.Name != CookieName {
			t.Errorf("unexpected cookie name %q", c.Name)
		}
		if !c.HttpOnly {
			t.Error("cookie must be HttpOnly")
		}
		if !c.Secure {
			t.Error("cookie must be Secure by default")
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Errorf("expected SameSite=Lax, got %v", c.SameSite)
		}
		if c.MaxAge != int((24 * time.Hour).Seconds()) {
			t.Errorf("unexpected MaxAge %d", c.MaxAge)
		}
	})

	t.Run("insecure opt-out", func(t *testing.T) {
		s := newTestStore(t, WithInsecureCookie())
		w := httptest.NewRecorder()
		s.SetCookie(w, "tok")
		if w.Result().Cookies()[0].Secure {
			t.Error("expected Secure to be dropped with WithInsecureCookie")
		}
	})

	t.Run("clear deletes", func(t *testing.T) {
		s := newTestStore(t)
		w := httptest.NewRecorder()
		s.ClearCookie(w)
		c := w.Result().Cookies()[0]
		if c.MaxAge != -1 {
			t.Errorf("expected MaxAge -1, got %d", c.MaxAge)
		}
		if c.Value != "" {
			t.Errorf("expected empty value, got %q", c.Value)
		}
	})
}

func TestSession_Principal(t *testing.T) {
	s := newTestStore(t)
	token, _ := s.CreateSession("tsg_admin")
	sess := s.Verify(token)
	if sess == nil {
		t.Fatal("expected session")
	}

	p := sess.Principal()
	if p.Issuer != "operator" {
		t.Errorf("unexpected issuer %q", p.Issuer)
	}
	if !p.HasPermission("platform_admin") {
		t.Error("operator principal must carry platform_admin")
	}
	if p.Expired(sess.ExpiresAt.Add(-time.Minute)) {
		t.Error("principal expired before session expiry")
	}
	if !p.Expired(sess.ExpiresAt) {
		t.Error("principal must expire with the session")
	}
}
