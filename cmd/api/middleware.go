package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// adminAuthority is the role key required by admin-only routes. Role keys
// carry the ROLE_ prefix as stored after the prefix migration.
const adminAuthority = "ROLE_ADMIN"

type contextKey string

const authClaimsCtx contextKey = "authClaims"

// authClaims is what a validated access token contributes to the request
// context: the subject username and its role-key authorities.
type authClaims struct {
	Username string
	Roles    []string
}

func getAuthClaims(r *http.Request) (*authClaims, bool) {
	claims, ok := r.Context().Value(authClaimsCtx).(*authClaims)
	return claims, ok
}

func (app *application) AuthTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
			return
		}

		token, err := app.authenticator.ValidateAccessToken(parts[1])
		if err != nil {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}

		mapClaims, _ := token.Claims.(jwt.MapClaims)

		username, err := mapClaims.GetSubject()
		if err != nil || username == "" {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("token subject is missing"))
			return
		}

		claims := &authClaims{Username: username}
		if raw, ok := mapClaims["roles"].([]any); ok {
			for _, v := range raw {
				if role, ok := v.(string); ok {
					claims.Roles = append(claims.Roles, role)
				}
			}
		}

		ctx := context.WithValue(r.Context(), authClaimsCtx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole guards a route behind one of the token's role authorities.
// Must run after AuthTokenMiddleware.
func (app *application) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := getAuthClaims(r)
			if !ok {
				app.unauthorizedErrorResponse(w, r, fmt.Errorf("missing authentication"))
				return
			}

			for _, have := range claims.Roles {
				if have == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			app.forbiddenResponse(w, r)
		})
	}
}

func (app *application) RateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.config.rateLimiter.Enabled {
			if allow, retryAfter := app.rateLimiter.Allow(r.RemoteAddr); !allow {
				app.rateLimitExceededResponse(w, r, retryAfter)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
