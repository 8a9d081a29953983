package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/storefront/storefront-api/internal/platform/httpx"
	"github.com/storefront/storefront-api/internal/security/token"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(raw string) (token.Claims, error)
}

type claimsContextKey struct{}

// ContextWithClaims stores verified claims in ctx.
func ContextWithClaims(ctx context.Context, claims token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts the claims stored by RequireBearer.
func ClaimsFromContext(ctx context.Context) (token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(token.Claims)
	return claims, ok
}

// RequireBearer rejects requests without a valid "Authorization: Bearer" token.
func RequireBearer(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole allows only callers whose token carries one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Error(w, http.StatusForbidden, "Forbidden")
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
