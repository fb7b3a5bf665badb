package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kasakmasrani/CampusSync-AI/internal/domain/model"
)

// Claims is the bearer token payload. Subject carries the numeric user id.
type Claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID uint
	Role   model.Role
	Name   string
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller stored on ctx by Authenticator.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator verifies HS256 bearer tokens issued by the account service.
// It never issues tokens itself.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates a verifier for secret. An empty issuer skips the iss check.
func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required but was empty")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Principal{}, errors.New("invalid token claims")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 0)
	if err != nil || id == 0 {
		return Principal{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	role := model.Role(claims.Role)
	if !role.Valid() {
		return Principal{}, fmt.Errorf("invalid role %q", claims.Role)
	}
	return Principal{UserID: uint(id), Role: role, Name: claims.Name}, nil
}

// Middleware attaches the caller of a valid bearer token to the request context.
// Requests without a token pass through anonymous; a present but invalid token
// is rejected with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "api.authenticate"
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			writeError(w, r, WrapKind(op, ErrUnauthorized, errors.New("expected a bearer token")))
			return
		}
		p, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, r, WrapKind(op, ErrUnauthorized, err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			writeError(w, r, NewKind("api.require_auth", ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects anonymous requests and callers whose role is not one of roles.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "api.require_role"
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, r, NewKind(op, ErrUnauthorized))
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, WrapKind(op, ErrForbidden, fmt.Errorf("role %q may not call this endpoint", p.Role)))
		})
	}
}
