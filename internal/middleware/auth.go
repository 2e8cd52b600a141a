// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
	// ScopesKey is the context key for JWT scopes.
	ScopesKey ContextKey = "scopes"
)

// ErrUnauthenticated is returned by an Authenticator when no valid
// session is present.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the resolved caller identity.
type Identity struct {
	UserID string
	Scopes []string
}

// Authenticator resolves a request to a caller identity. It is the
// single gate before any chat work begins.
type Authenticator interface {
	Resolve(r *http.Request) (Identity, error)
}

// Claims represents JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scope"`
}

// JWTAuthenticator validates HMAC-signed bearer tokens.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates a JWT authenticator with a shared
// secret.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// Resolve extracts and validates the bearer token.
func (a *JWTAuthenticator) Resolve(r *http.Request) (Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Identity{}, ErrUnauthenticated
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Identity{}, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{UserID: claims.Subject, Scopes: claims.Scopes}, nil
}

// Auth creates authentication middleware over an Authenticator. No
// side effects occur past this point for unauthenticated requests.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authenticator.Resolve(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthenticated"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, identity.UserID)
			ctx = context.WithValue(ctx, ScopesKey, identity.Scopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetScopes gets scopes from context.
func GetScopes(ctx context.Context) []string {
	if v := ctx.Value(ScopesKey); v != nil {
		return v.([]string)
	}
	return nil
}
