package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issueEditor(t *testing.T, secret []byte) string {
	t.Helper()
	token, err := Issue(secret, Claims{Scope: ScopeEditor}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func TestMiddleware_AcceptsBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token := issueEditor(t, secret)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims == nil {
			t.Fatalf("expected claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/assign", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	Middleware(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestMiddleware_RejectsMissingAndQueryTokens(t *testing.T) {
	secret := []byte("test-secret")
	token := issueEditor(t, secret)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, target := range []string{"/api/v1/schedule/clear", "/api/v1/schedule/clear?token=" + token} {
		req := httptest.NewRequest(http.MethodPost, target, nil)
		rr := httptest.NewRecorder()
		Middleware(secret)(next).ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("expected bearer challenge")
		}
	}
}

func TestMiddleware_RejectsOtherSchemes(t *testing.T) {
	secret := []byte("test-secret")
	token := issueEditor(t, secret)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, header := range []string{"Basic " + token, token, "Bearer"} {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings/volume", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		Middleware(secret)(next).ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", header, rr.Code)
		}
	}
}

func TestSessionHelpers(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{Scope: ScopeEditor, Client: "192.0.2.10"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithClaims(httptest.NewRequest(http.MethodGet, "/", nil).Context(), claims)
	if got := SessionClient(ctx); got != "192.0.2.10" {
		t.Fatalf("client = %q", got)
	}
	exp, ok := SessionExpiry(ctx)
	if !ok || time.Until(exp) < 59*time.Minute {
		t.Fatalf("expiry = %v, %v", exp, ok)
	}

	anon := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if SessionClient(anon) != "" {
		t.Fatal("anonymous context has a client")
	}
	if _, ok := SessionExpiry(anon); ok {
		t.Fatal("anonymous context has an expiry")
	}
}

func TestOptional_NeverRejects(t *testing.T) {
	secret := []byte("test-secret")
	var sawClaims bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/now-playing", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr := httptest.NewRecorder()
	Optional(secret)(next).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || sawClaims {
		t.Fatalf("expected pass-through without claims, got %d claims=%v", rr.Code, sawClaims)
	}

	req.Header.Set("Authorization", "Bearer "+issueEditor(t, secret))
	rr = httptest.NewRecorder()
	Optional(secret)(next).ServeHTTP(rr, req)
	if !sawClaims {
		t.Fatal("expected claims for a valid token")
	}
}
