package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"booking_service/internal/metrics"
	"booking_service/internal/models"
	"booking_service/internal/service"

	"github.com/gin-gonic/gin"
)

type Config struct {
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	ChallengeTTL time.Duration

	// TrustedProxies lists the proxies whose X-Forwarded-For is honored when
	// resolving the client IP. Empty means the peer address is always used.
	TrustedProxies []string

	// RateLimitPerMinute <= 0 disables the limiter.
	RateLimitPerMinute int
	RateLimitBurst     int
}

type Handler struct {
	serviceLayer service.Service
	metrics      *metrics.Metrics
	limiter      *IPRateLimiter
	cfg          Config
	log          *slog.Logger
}

type errorResponse struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newErrorResponse(c *gin.Context, statusCode int, errMessage string) {
	c.AbortWithStatusJSON(statusCode, errorResponse{Message: errMessage})
}

func NewHandler(srvc service.Service, cfg Config, m *metrics.Metrics, lgr *slog.Logger) *Handler {
	return &Handler{
		serviceLayer: srvc,
		metrics:      m,
		limiter:      NewIPRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		cfg:          cfg,
		log:          lgr,
	}
}

func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(h.cfg.TrustedProxies); err != nil {
		h.log.Error("invalid trusted proxies, falling back to none", slog.Any("error", err))

		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), RequestID(), h.metrics.Instrument(), RequestLogger(h.log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	auth := router.Group("/auth")
	{
		auth.POST("/request-login", h.limiter.Middleware(), h.RequestLogin)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.GET("/me", h.Me)
		auth.POST("/logout", h.AuthMiddleware(), h.Logout)
		auth.POST("/request-reset-password", h.limiter.Middleware(), h.RequestPasswordReset)
		auth.POST("/reset-password", h.ResetPassword)
	}

	users := router.Group("/users", h.AuthMiddleware(), RequireRoles(models.RoleAdmin))
	{
		users.GET("", h.ListUsers)
		users.POST("/create", h.CreateUser)
		users.PATCH("/patch/:id", h.UpdateUser)
		users.DELETE("/delete/:id", h.DeleteUser)
	}

	router.PATCH("/users/profile", h.AuthMiddleware(), h.UpdateProfile)

	return router
}

// respondError maps service errors onto HTTP statuses. Anything outside the
// service taxonomy is logged and hidden behind a 500.
func (h *Handler) respondError(c *gin.Context, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		log.Warn("unauthorized", slog.Any("error", err))

		newErrorResponse(c, http.StatusUnauthorized, service.PublicMessage(err))
	case errors.Is(err, service.ErrInvalidInput):
		newErrorResponse(c, http.StatusBadRequest, service.PublicMessage(err))
	case errors.Is(err, service.ErrConflict):
		newErrorResponse(c, http.StatusConflict, "Email already registered")
	case errors.Is(err, service.ErrNotFound):
		newErrorResponse(c, http.StatusNotFound, "User not found")
	default:
		log.Error("internal error", slog.Any("error", err))

		newErrorResponse(c, http.StatusInternalServerError, "internal error")
	}
}

// ParseSameSite maps lax, strict and none to the http constants. Unknown
// values fall back to lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
