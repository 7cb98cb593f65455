package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims the workflow cares about.
type JWTClaims struct {
	UserID string
	Role   string
}

// RoleModerator marks accounts allowed to resolve verification requests.
const RoleModerator = "moderator"

type contextKeyUserID struct{}
type contextKeyRole struct{}

// GetUserID retrieves the authenticated user id from the context.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(contextKeyUserID{}).(string)
	return userID
}

// GetRole retrieves the authenticated role from the context.
func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(contextKeyRole{}).(string)
	return role
}

// RequireAuth rejects requests without a valid bearer token and stores the
// claims in the context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access, missing token",
					"request_id", GetRequestID(r.Context()))
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access, invalid token",
					"error", err, "request_id", GetRequestID(r.Context()))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUserID{}, claims.UserID)
			ctx = context.WithValue(ctx, contextKeyRole{}, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireModerator gates the moderation surface. Must run after RequireAuth.
func RequireModerator(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetRole(r.Context()) != RoleModerator {
				logger.WarnContext(r.Context(), "forbidden, moderator role required",
					"user_id", GetUserID(r.Context()),
					"request_id", GetRequestID(r.Context()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"moderator role required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
