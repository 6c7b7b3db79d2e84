// server/internal/api/handlers/user_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"krishisetu-api-server/internal/auth"
	"krishisetu-api-server/internal/database"
	"krishisetu-api-server/internal/models"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	Users     database.UserRepository
	JWTSecret []byte
	TokenTTL  time.Duration
}

type RegisterRequest struct {
	Name     string          `json:"name" binding:"required"`
	Email    string          `json:"email" binding:"required,email"`
	Phone    string          `json:"phone"`
	Password string          `json:"password" binding:"required,min=6"`
	Role     string          `json:"role" binding:"required,oneof=farmer buyer coldstorage transporter"`
	Location models.Location `json:"location"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *UserHandler) issue(c *gin.Context, status int, u *models.User) {
	token, err := auth.GenerateJWT(h.JWTSecret, h.TokenTTL, u.ID.Hex(), u.Email, u.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, gin.H{"token": token, "user": u})
}

func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	u := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         req.Role,
		Location:     req.Location,
		CreatedAt:    time.Now(),
	}
	if err := h.Users.Create(c.Request.Context(), u); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists", "error": "validation"})
			return
		}
		respondError(c, err)
		return
	}
	h.issue(c, http.StatusCreated, u)
}

func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	u, err := h.Users.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, database.ErrUserNotFound) {
		respondError(c, err)
		return
	}
	if u == nil || !auth.CheckPasswordHash(req.Password, u.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials", "error": "unauthorized"})
		return
	}
	h.issue(c, http.StatusOK, u)
}

func (h *UserHandler) Me(c *gin.Context) {
	id, ok := currentUser(c)
	if !ok {
		return
	}
	u, err := h.Users.FindByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found", "error": "not_found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
