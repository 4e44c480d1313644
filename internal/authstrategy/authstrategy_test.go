package authstrategy

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAllowAllAlwaysAdmits(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	subject, ok := AllowAll{}.Authenticate(r)
	if !ok || subject != "" {
		t.Fatalf("Authenticate() = %q, %v, want \"\", true", subject, ok)
	}
}

func signToken(t *testing.T, secret string, subject string, ttl time.Duration) string {
	t.Helper()
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestJWTStrategyAcceptsValidBearerToken(t *testing.T) {
	strat := NewJWTStrategy("shh")
	token := signToken(t, "shh", "user-1", time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	subject, ok := strat.Authenticate(r)
	if !ok || subject != "user-1" {
		t.Fatalf("Authenticate() = %q, %v, want \"user-1\", true", subject, ok)
	}
}

func TestJWTStrategyAcceptsQueryParamToken(t *testing.T) {
	strat := NewJWTStrategy("shh")
	token := signToken(t, "shh", "user-2", time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)

	subject, ok := strat.Authenticate(r)
	if !ok || subject != "user-2" {
		t.Fatalf("Authenticate() = %q, %v, want \"user-2\", true", subject, ok)
	}
}

func TestJWTStrategyRejectsWrongSecret(t *testing.T) {
	strat := NewJWTStrategy("shh")
	token := signToken(t, "different-secret", "user-1", time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	if _, ok := strat.Authenticate(r); ok {
		t.Fatalf("expected a token signed with a different secret to be rejected")
	}
}

func TestJWTStrategyRejectsExpiredToken(t *testing.T) {
	strat := NewJWTStrategy("shh")
	token := signToken(t, "shh", "user-1", -time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	if _, ok := strat.Authenticate(r); ok {
		t.Fatalf("expected an expired token to be rejected")
	}
}

func TestJWTStrategyRejectsMissingToken(t *testing.T) {
	strat := NewJWTStrategy("shh")
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)

	if _, ok := strat.Authenticate(r); ok {
		t.Fatalf("expected a request with no token to be rejected")
	}
}
