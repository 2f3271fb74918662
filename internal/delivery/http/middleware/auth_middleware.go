package middleware

import (
	"context"
	"net/http"
	"strings"

	"edulearn-backend/internal/domain"
	"edulearn-backend/pkg/utils"
)

// AuthMiddleware authenticates via Bearer header or the accessToken cookie
// and stores a claims-derived user in the request context. No DB hit per
// request; token claims are the authority for id and role.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			cookie, err := r.Cookie("accessToken")
			if err == nil {
				tokenString = cookie.Value
			}
		}

		if tokenString == "" {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: No token provided")
			return
		}

		claims, err := utils.ValidateJWT(tokenString)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}

		sub, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)

		user := &domain.User{
			ID:    sub,
			Email: email,
			Role:  role,
		}

		ctx := context.WithValue(r.Context(), domain.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user, or nil when the request
// passed through no auth middleware.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(domain.UserContextKey).(*domain.User)
	return user
}
