package handler

import (
	"net/http"
	"time"

	"booking_service/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	cookieAccess  = "access_token"
	cookieRefresh = "refresh_token"
	cookie2FA     = "2fa_token"
	cookieReset   = "reset_token"

	sessionPath   = "/"
	challengePath = "/auth"
)

func (h *Handler) setCookie(c *gin.Context, name, value, path string, maxAge time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(c *gin.Context, name, path string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) setSessionCookies(c *gin.Context, pair models.TokenPair) {
	h.setCookie(c, cookieAccess, pair.AccessToken, sessionPath, h.cfg.AccessTTL)
	h.setCookie(c, cookieRefresh, pair.RefreshToken, sessionPath, h.cfg.RefreshTTL)
}

func (h *Handler) clearSessionCookies(c *gin.Context) {
	h.expireCookie(c, cookieAccess, sessionPath)
	h.expireCookie(c, cookieRefresh, sessionPath)
}

func readCookie(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}
