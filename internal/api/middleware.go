/**
 * @description
 * Authentication, authorization and abuse-control middleware for the API.
 */

package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/payflow/approval-service/internal/app"
	"github.com/payflow/approval-service/internal/domain"
	"go.uber.org/zap"
)

type contextKey string

const actorContextKey = contextKey("actor")

// TokenParser verifies session tokens.
type TokenParser interface {
	Parse(raw string) (*app.Claims, error)
}

// RateLimiter counts hits per scope and subject inside a fixed window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// AuthMiddleware validates the bearer token and injects the caller into the context.
func AuthMiddleware(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeMiddlewareError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader || tokenString == "" {
				writeMiddlewareError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			claims, err := tokens.Parse(tokenString)
			if err != nil {
				writeMiddlewareError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			actor, err := app.ActorFromClaims(claims)
			if err != nil {
				writeMiddlewareError(w, http.StatusUnauthorized, "Invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects callers whose role is not listed. It must run after AuthMiddleware.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeMiddlewareError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeMiddlewareError(w, http.StatusForbidden, "Insufficient role")
		})
	}
}

// InternalAuthMiddleware validates the internal API key for server-to-server calls.
// With no key configured every internal call is rejected.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Internal-API-Key")
			if requiredKey == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(requiredKey)) != 1 {
				writeMiddlewareError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginRateLimitMiddleware caps login attempts per client IP per minute.
// Limiter errors let the request through so a Redis outage never blocks logins.
func LoginRateLimitMiddleware(limiter RateLimiter, perMinute int, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, retryAfter, err := limiter.ConsumeRateLimit(r.Context(), "login", clientIP(r), perMinute, time.Minute)
			if err != nil {
				logger.Warn("login rate limiter unavailable", zap.String("request_id", requestID(r)), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count > perMinute {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeMiddlewareError(w, http.StatusTooManyRequests, "Too many login attempts. Try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ActorFromContext retrieves the authenticated caller from the request context.
func ActorFromContext(ctx context.Context) (app.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(app.Actor)
	return actor, ok
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

func writeMiddlewareError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
