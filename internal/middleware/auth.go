package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hyunjun8803/car-care-platform-sub000/internal/auth"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	UserContextKey contextKey = "user"
)

// publicPaths are served without a token.
var publicPaths = map[string]bool{
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/health":            true,
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authService *auth.Service
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authService *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// Authenticate validates JWT tokens and adds user context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		token, err := m.authService.ExtractTokenFromHeader(authHeader)
		if err != nil {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			if err == auth.ErrExpiredToken {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole middleware checks if the user has the required role. Admins
// pass every role check.
func (m *AuthMiddleware) RequireRole(requiredRole models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "User context not found", http.StatusUnauthorized)
				return
			}

			if claims.Role != requiredRole && claims.Role != models.RoleAdmin {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission middleware checks if the user has the required permission
func (m *AuthMiddleware) RequirePermission(requiredAction string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				http.Error(w, "User context not found", http.StatusUnauthorized)
				return
			}

			if !models.RoleHasPermission(claims.Role, requiredAction) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(ctx context.Context) (*models.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*models.Claims)
	return claims, ok
}

// WithUser returns a copy of ctx carrying claims.
func WithUser(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// RateLimitMiddleware provides sliding-window rate limiting per client IP.
// Forwarding headers are only honored when TrustProxy is set.
type RateLimitMiddleware struct {
	TrustProxy bool

	requests  map[string][]int64 // IP -> timestamps
	lastSweep int64
	mu        sync.Mutex
	now       func() time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requests: make(map[string][]int64),
		now:      time.Now,
	}
}

// RateLimit applies rate limiting based on IP address. A non-positive
// maxRequests disables the limit.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, windowSeconds int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxRequests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.allow(getClientIP(r, m.TrustProxy), maxRequests, windowSeconds) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimitMiddleware) allow(clientIP string, maxRequests, windowSeconds int) bool {
	now := m.now().Unix()
	windowStart := now - int64(windowSeconds)

	m.mu.Lock()
	defer m.mu.Unlock()

	if now-m.lastSweep >= int64(windowSeconds) {
		m.sweep(windowStart)
		m.lastSweep = now
	}

	valid := m.requests[clientIP][:0]
	for _, ts := range m.requests[clientIP] {
		if ts > windowStart {
			valid = append(valid, ts)
		}
	}
	if len(valid) >= maxRequests {
		m.requests[clientIP] = valid
		return false
	}
	m.requests[clientIP] = append(valid, now)
	return true
}

// sweep drops clients with no request inside the window. Timestamps are
// appended in order, so the last one is the newest.
func (m *RateLimitMiddleware) sweep(windowStart int64) {
	for ip, stamps := range m.requests {
		if len(stamps) == 0 || stamps[len(stamps)-1] <= windowStart {
			delete(m.requests, ip)
		}
	}
}

// getClientIP extracts the client IP from the request. X-Forwarded-For and
// X-Real-IP are client-controlled, so they are read only behind a trusted proxy.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return ip
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
