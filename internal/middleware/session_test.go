package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionMiddleware_IssuesCookieForNewVisitor(t *testing.T) {
	m := NewSessionMiddleware("test-secret")

	var gotID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetSessionIDFromContext(r.Context())
		if !ok {
			t.Fatalf("session id not in context")
		}
		gotID = id
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/chat/messages", nil)

	m.Middleware(next).ServeHTTP(w, r)

	if gotID == "" {
		t.Fatalf("expected generated session id")
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no session cookie set")
	}

	id, ok := m.parseCookie(cookies[0].Value)
	if !ok || id != gotID {
		t.Fatalf("cookie id = %q, want %q", id, gotID)
	}
}

func TestSessionMiddleware_KeepsExistingSession(t *testing.T) {
	m := NewSessionMiddleware("test-secret")

	first := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))

	cookie := first.Result().Cookies()[0]
	wantID, _ := m.parseCookie(cookie.Value)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)

	var gotID string
	second := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetSessionIDFromContext(r.Context())
	})).ServeHTTP(second, r)

	if gotID != wantID {
		t.Fatalf("session id = %q, want %q from cookie", gotID, wantID)
	}
	if len(second.Result().Cookies()) != 0 {
		t.Fatalf("valid cookie must not be reissued")
	}
}

func TestNewSessionMiddleware_EmptySecretPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on empty secret")
		}
	}()

	NewSessionMiddleware("")
}

func TestSessionMiddleware_RejectsTamperedCookie(t *testing.T) {
	m := NewSessionMiddleware("test-secret")

	other := NewSessionMiddleware("other-secret")
	forged := other.sign("attacker-session")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: forged})

	var gotID string
	w := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetSessionIDFromContext(r.Context())
	})).ServeHTTP(w, r)

	if gotID == "attacker-session" {
		t.Fatalf("forged cookie must not be accepted")
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatalf("a fresh session cookie must replace the forged one")
	}
}
