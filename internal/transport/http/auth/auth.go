// Package auth verifies access tokens issued by the identity service.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/errs"
	"github.com/corray333/backend-labs/checkout/internal/service/models/user"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/respond"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey struct{}

type claims struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
}

func New(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Parse reads a "Bearer <jwt>" header value.
func (a *Authenticator) Parse(header string) (*user.User, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: missing bearer token", errs.ErrUnauthorized)
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}

	return &user.User{ID: c.ID, Role: c.Role}, nil
}

// Issue signs a token for u. The identity service owns issuance; this exists
// for tooling and tests.
func (a *Authenticator) Issue(u user.User, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		ID:   u.ID,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(a.secret)
}

// Optional attaches the caller when the token verifies and continues as
// anonymous otherwise.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, err := a.Parse(r.Header.Get("Authorization")); err == nil {
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := a.Parse(r.Header.Get("Authorization"))
		if err != nil {
			respond.Error(w, err, "Rejected unauthenticated request")

			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireAdmin must run after Required.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !UserFromContext(r.Context()).IsAdmin() {
			respond.Error(w, fmt.Errorf("%w: admin role required", errs.ErrForbidden), "Rejected non-admin request")

			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns nil for anonymous requests.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(ctxKey{}).(*user.User)

	return u
}
