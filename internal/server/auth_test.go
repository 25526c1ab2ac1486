package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "etl-operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return signed
}

func TestRequireJWT_MissingHeader(t *testing.T) {
	s, _ := newTestServer(t, "s3cret")
	rec := doRequest(s, http.MethodGet, "/api/v1/measures")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireJWT_BadScheme(t *testing.T) {
	s, _ := newTestServer(t, "s3cret")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/measures", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireJWT_WrongSecret(t *testing.T) {
	s, _ := newTestServer(t, "s3cret")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/measures", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "other-secret"))
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireJWT_ValidToken(t *testing.T) {
	s, _ := newTestServer(t, "s3cret")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/measures", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "s3cret"))
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireJWT_HealthStaysOpen(t *testing.T) {
	s, _ := newTestServer(t, "s3cret")
	rec := doRequest(s, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequireJWT_DisabledWithoutSecret(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := doRequest(s, http.MethodGet, "/api/v1/measures")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
