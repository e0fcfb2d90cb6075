// Package auth verifies the bearer tokens the identity service issues and
// gates comment writes on them. Tokens are HS256 JWTs; the subject claim is
// the acting user id and an optional role claim unlocks operator endpoints.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/video-comments/internal/platform/api"
	"github.com/example/video-comments/internal/platform/httpserver"
)

type ctxKeyUserID struct{}
type ctxKeyRole struct{}

// Claims is the slice of the token payload this service reads.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

var errInvalidToken = errors.New("auth: invalid token")

type JWTVerifier struct {
	Secret []byte
}

// Parse checks signature and expiry, pins the algorithm to HS256 so a token
// cannot pick its own, and requires a non-empty subject.
func (v JWTVerifier) Parse(raw string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errInvalidToken
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyUserID{}).(string)
	return v, ok
}

// WithUserID injects a user id directly, bypassing token verification. For
// handler tests.
func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID{}, uid)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRole{}).(string)
	return v, ok
}

// RequireUser rejects the request with the standard error envelope unless a
// valid bearer token identifies a user, then threads user id and role into
// the request context for the handlers downstream.
func RequireUser(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := httpserver.RequestIDFromContext(r.Context())

			raw, ok := bearerToken(r)
			if !ok {
				api.Unauthorized(w, "UNAUTHORIZED", "bearer token required", rid)
				return
			}
			claims, err := verifier.Parse(raw)
			if err != nil {
				api.Unauthorized(w, "UNAUTHORIZED", "invalid or expired token", rid)
				return
			}

			ctx := WithUserID(r.Context(), claims.Subject)
			if role := strings.TrimSpace(claims.Role); role != "" {
				ctx = context.WithValue(ctx, ctxKeyRole{}, role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}
