/**
 * @description
 * This file contains custom middleware for the HTTP router. The auth
 * middleware is the boundary to the marketplace's access guard: it validates
 * the bearer token the guard issued and turns its verified claims into a
 * domain.AuthContext that handlers and the service layer consume. Credentials
 * themselves are never revalidated here.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 */

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pawfund/funding-service/internal/domain"
)

// AuthContextKey is a custom type for the context key to avoid collisions.
type AuthContextKey string

const authContextKey AuthContextKey = "authContext"

// AuthMiddleware creates a middleware that validates HS256 bearer tokens
// issued by the marketplace's auth layer. Requests without a valid token are
// rejected with 401 before reaching any handler.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Extract the token from "Bearer <token>"
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			// 'sub' carries the verified identity (email); 'role' the access level.
			email, ok := claims["sub"].(string)
			if !ok || strings.TrimSpace(email) == "" {
				http.Error(w, "Identity not found in token", http.StatusUnauthorized)
				return
			}
			role, _ := claims["role"].(string)
			if role != domain.RoleAdmin {
				role = domain.RoleUser
			}

			auth := domain.AuthContext{
				Email:         email,
				Role:          role,
				Authenticated: true,
			}

			ctx := context.WithValue(r.Context(), authContextKey, auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthContext retrieves the verified AuthContext from the request context.
// Handlers behind AuthMiddleware should use this to get the caller identity.
func GetAuthContext(ctx context.Context) (domain.AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey).(domain.AuthContext)
	return auth, ok
}
