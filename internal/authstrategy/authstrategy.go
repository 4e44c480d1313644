// Package authstrategy implements the pluggable connection-time predicate
// spec.md §6 leaves as a deployment choice: verify a bearer token before a
// WebSocket upgrade proceeds. The core document-relay path never enforces
// authorship or per-op permissions; a strategy only decides whether the
// connection is admitted at all, and optionally attaches a subject id used
// for logging.
package authstrategy

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Strategy decides whether an incoming upgrade request is admitted. Subject
// is an opaque identifier used only for logging/metrics; the core relay
// never consults it.
type Strategy interface {
	Authenticate(r *http.Request) (subject string, ok bool)
}

// AllowAll is the default per spec.md §6: every connection is admitted,
// subject is always empty.
type AllowAll struct{}

func (AllowAll) Authenticate(*http.Request) (string, bool) { return "", true }

// Claims mirrors the teacher auth-service's token shape closely enough to
// decode tokens it issues: a subject and an expiry, nothing docrelay needs
// to act on beyond logging.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// JWTStrategy validates a bearer token the same way authservice.ParseToken
// does: HMAC-signed, shared-secret verification, extracting a subject for
// connection logging.
type JWTStrategy struct {
	secret []byte
}

func NewJWTStrategy(secret string) *JWTStrategy {
	return &JWTStrategy{secret: []byte(secret)}
}

func (s *JWTStrategy) Authenticate(r *http.Request) (string, bool) {
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		// WebSocket upgrades can't set arbitrary headers from a browser;
		// accept the token as a query parameter too.
		tokenString = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if tokenString == "" {
		return "", false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	return claims.Subject, true
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
