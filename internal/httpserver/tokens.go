package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

var errBadToken = errors.New("invalid session token")

// sessionClaims binds a bearer to one session.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// tokenIssuer signs and verifies HS256 session tokens.
type tokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Sign creates a token for sessionID and returns it with its expiry.
func (t *tokenIssuer) Sign(sessionID string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	ss, err := tok.SignedString(t.secret)
	return ss, exp, err
}

// Parse verifies a token and returns the session id it grants.
func (t *tokenIssuer) Parse(raw string) (string, error) {
	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || !tok.Valid || claims.SessionID == "" {
		return "", errBadToken
	}
	return claims.SessionID, nil
}

// bearerOrQuery extracts a token from the Authorization header, falling back
// to the token query parameter for EventSource and WebSocket clients, which
// cannot set headers.
func bearerOrQuery(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return r.URL.Query().Get("token")
}

// ctxSessionKey is the context key for the authorized session id.
type ctxSessionKey struct{}

// requireSession enforces a valid token whose sid matches the {id} path param.
func (s *Server) requireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerOrQuery(r)
			if raw == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			sid, err := s.tokens.Parse(raw)
			if err != nil {
				http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
				return
			}
			if sid != chi.URLParam(r, "id") {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			ctx := context.WithValue(r.Context(), ctxSessionKey{}, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionID returns the id authorized by requireSession.
func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(ctxSessionKey{}).(string)
	return id
}
