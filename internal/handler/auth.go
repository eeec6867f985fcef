package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"booking_service/internal/auth"

	"github.com/gin-gonic/gin"
)

const msgChallengeMissing = "Token expired, request a new one"

type requestLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Code string `json:"code" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// POST /auth/request-login
func (h *Handler) RequestLogin(c *gin.Context) {
	const op = "handler.RequestLogin"

	log := h.log.With(slog.String("op", op))

	var req requestLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "email and password are required")

		return
	}
	if err := h.serviceLayer.ValidateEmail(auth.NormalizeEmail(req.Email)); err != nil {
		h.respondError(c, log, err)

		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "password does not meet the policy")

		return
	}

	challenge, err := h.serviceLayer.RequestLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	h.setCookie(c, cookie2FA, challenge, challengePath, h.cfg.ChallengeTTL)

	c.JSON(http.StatusOK, gin.H{"requires_2fa": true})
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || !isCode(req.Code) {
		newErrorResponse(c, http.StatusBadRequest, "code must have 6 digits")

		return
	}

	challenge := readCookie(c, cookie2FA)
	if challenge == "" {
		newErrorResponse(c, http.StatusUnauthorized, msgChallengeMissing)

		return
	}

	pair, err := h.serviceLayer.Login(c.Request.Context(), req.Code, challenge)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	h.expireCookie(c, cookie2FA, challengePath)
	h.setSessionCookies(c, pair)

	c.JSON(http.StatusOK, messageResponse{Message: "Authenticated with 2FA"})
}

// POST /auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	const op = "handler.Refresh"

	log := h.log.With(slog.String("op", op))

	token := readCookie(c, cookieRefresh)
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		newErrorResponse(c, http.StatusUnauthorized, "missing refresh token")

		return
	}

	pair, err := h.serviceLayer.Refresh(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	h.setSessionCookies(c, pair)

	c.JSON(http.StatusOK, messageResponse{Message: "Tokens refreshed"})
}

// GET /auth/me
//
// An expired access token is refreshed with the refresh_token cookie and the
// lookup is retried once. A missing access token counts as expired when a
// refresh token is present, since the browser drops the access cookie when
// its max-age runs out.
func (h *Handler) Me(c *gin.Context) {
	const op = "handler.Me"

	log := h.log.With(slog.String("op", op))
	ctx := c.Request.Context()

	access := readCookie(c, cookieAccess)
	if bearer, ok := bearerToken(c); ok && bearer != "" {
		access = bearer
	}
	refresh := readCookie(c, cookieRefresh)

	identity, err := h.serviceLayer.Me(ctx, access, refresh)
	if err != nil && refresh != "" && (access == "" || errors.Is(err, auth.ErrTokenExpired)) {
		pair, rerr := h.serviceLayer.Refresh(ctx, refresh)
		if rerr != nil {
			h.respondError(c, log, rerr)

			return
		}

		h.setSessionCookies(c, pair)
		log.Debug("access token refreshed on expiry")

		identity, err = h.serviceLayer.Me(ctx, pair.AccessToken, pair.RefreshToken)
	}
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, identity)
}

// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	const op = "handler.Logout"

	log := h.log.With(slog.String("op", op))

	id, ok := userIDFromContext(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	if err := h.serviceLayer.Logout(c.Request.Context(), id); err != nil {
		h.respondError(c, log, err)

		return
	}

	h.clearSessionCookies(c)

	c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

// POST /auth/request-reset-password
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	const op = "handler.RequestPasswordReset"

	log := h.log.With(slog.String("op", op))

	var req requestResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "email is required")

		return
	}
	if err := h.serviceLayer.ValidateEmail(auth.NormalizeEmail(req.Email)); err != nil {
		h.respondError(c, log, err)

		return
	}

	challenge, err := h.serviceLayer.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	h.setCookie(c, cookieReset, challenge, challengePath, h.cfg.ChallengeTTL)

	c.JSON(http.StatusOK, messageResponse{Message: "The code was sent by email"})
}

// POST /auth/reset-password
func (h *Handler) ResetPassword(c *gin.Context) {
	const op = "handler.ResetPassword"

	log := h.log.With(slog.String("op", op))

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || !isCode(req.Code) {
		newErrorResponse(c, http.StatusBadRequest, "code must have 6 digits and new_password is required")

		return
	}

	challenge := readCookie(c, cookieReset)
	if challenge == "" {
		newErrorResponse(c, http.StatusUnauthorized, msgChallengeMissing)

		return
	}

	if err := h.serviceLayer.ResetPassword(c.Request.Context(), req.Code, req.NewPassword, challenge); err != nil {
		h.respondError(c, log, err)

		return
	}

	h.expireCookie(c, cookieReset, challengePath)

	c.JSON(http.StatusOK, messageResponse{Message: "Password reset successfully"})
}

func isCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func userIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}
