package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminAuth_ValidToken(t *testing.T) {
	a := NewAdminAuth("test-secret")

	token, err := a.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(w, r)

	if !nextCalled {
		t.Fatalf("next handler was not called, status = %d", w.Result().StatusCode)
	}
}

func TestAdminAuth_MissingHeader(t *testing.T) {
	a := NewAdminAuth("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil))

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminAuth_ForeignToken(t *testing.T) {
	a := NewAdminAuth("test-secret")
	other := NewAdminAuth("other-secret")

	token, err := other.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminAuth_MalformedHeader(t *testing.T) {
	a := NewAdminAuth("test-secret")

	r := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	r.Header.Set("Authorization", "Token abc")

	w := httptest.NewRecorder()
	a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
