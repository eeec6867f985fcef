package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"booking_service/internal/auth"
	"booking_service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"golang.org/x/time/rate"
)

const (
	ctxRequestID = "RequestID"
	ctxUserID    = "UserID"
	ctxRole      = "Role"
	ctxEmail     = "Email"

	headerRequestID = "X-Request-ID"
)

// RequestID propagates X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > 128 {
			if u, err := uuid.NewV4(); err == nil {
				id = u.String()
			}
		}

		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)

		c.Next()
	}
}

func RequestLogger(lgr *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		lgr.Info("request",
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// AuthMiddleware accepts the access token from the Authorization header or
// the access_token cookie.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok {
			newErrorResponse(c, http.StatusUnauthorized, "invalid authorization header")

			return
		}
		if tokenStr == "" {
			tokenStr = readCookie(c, cookieAccess)
		}
		if tokenStr == "" {
			newErrorResponse(c, http.StatusUnauthorized, "missing access token")

			return
		}

		claims, err := h.serviceLayer.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			newErrorResponse(c, http.StatusUnauthorized, "invalid token")

			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxEmail, claims.Email)

		c.Next()
	}
}

// RequireRoles must run after AuthMiddleware.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ctxRole)
		r, _ := role.(models.Role)

		if !auth.Allowed(roles, r) {
			newErrorResponse(c, http.StatusForbidden, "forbidden")

			return
		}

		c.Next()
	}
}

// bearerToken returns ("", true) when no Authorization header is present and
// ok=false when the header is malformed.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", true
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}

	return strings.TrimSpace(parts[1]), true
}

// IPRateLimiter keeps a token bucket per client IP. Idle buckets are dropped
// during a sweep that runs at most once per ttl.
type IPRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	return &IPRateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     burst,
		ttl:       5 * time.Minute,
		lastSweep: time.Now(),
	}
}

// Allow reports whether ip may proceed. A nil limiter allows everything.
func (l *IPRateLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > l.ttl {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.ttl {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now

	return b.lim.AllowN(now, 1)
}

func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}

		if !l.Allow(ip) {
			c.Header("Retry-After", "60")
			newErrorResponse(c, http.StatusTooManyRequests, "too many requests")

			return
		}

		c.Next()
	}
}
