package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"booking_service/internal/models"
	"booking_service/internal/service"

	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type createUserResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// GET /users
func (h *Handler) ListUsers(c *gin.Context) {
	const op = "handler.ListUsers"

	log := h.log.With(slog.String("op", op))

	users, err := h.serviceLayer.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, log, err)

		return
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, users)
}

// POST /users/create
func (h *Handler) CreateUser(c *gin.Context) {
	const op = "handler.CreateUser"

	log := h.log.With(slog.String("op", op))

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "name, email, password and role are required")

		return
	}

	role, ok := models.ParseRole(req.Role)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "Unknown role")

		return
	}

	user, err := h.serviceLayer.CreateUser(c.Request.Context(), service.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusCreated, createUserResponse{ID: user.ID, Email: user.Email})
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type updateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// PATCH /users/patch/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	const op = "handler.UpdateUser"

	log := h.log.With(slog.String("op", op))

	id, ok := userIDParam(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "invalid user id")

		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")

		return
	}

	in := service.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
	if req.Role != nil {
		role, ok := models.ParseRole(*req.Role)
		if !ok {
			newErrorResponse(c, http.StatusBadRequest, "Unknown role")

			return
		}
		in.Role = &role
	}

	user, err := h.serviceLayer.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// PATCH /users/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	const op = "handler.UpdateProfile"

	log := h.log.With(slog.String("op", op))

	id, ok := userIDFromContext(c)
	if !ok {
		log.Error("failed to get user id from context")

		newErrorResponse(c, http.StatusUnauthorized, "invalid token")

		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "name is required")

		return
	}

	user, err := h.serviceLayer.UpdateProfile(c.Request.Context(), id, req.Name)
	if err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

// DELETE /users/delete/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	const op = "handler.DeleteUser"

	log := h.log.With(slog.String("op", op))

	id, ok := userIDParam(c)
	if !ok {
		newErrorResponse(c, http.StatusBadRequest, "invalid user id")

		return
	}

	if err := h.serviceLayer.DeleteUser(c.Request.Context(), id); err != nil {
		h.respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, messageResponse{Message: "User removed successfully"})
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
