package user

import (
	"article-service/auth"
	"article-service/internal/config"
	"article-service/internal/domain"
	"article-service/internal/errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// FormLogin represents login form data
type FormLogin struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// FormRegister represents registration form data
type FormRegister struct {
	Name     string `json:"name" binding:"required,max=128"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *Handler) Register(c *gin.Context) {
	var form FormRegister
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user := &domain.User{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}

	if err := h.service.Register(c.Request.Context(), user); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.ToSafeUser()})
}

func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	user, err := h.service.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	accessToken, err := auth.GenerateAccessToken(user.ID, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}
	refreshToken, err := auth.GenerateRefreshToken(user.ID, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.SetCookie(
		"refresh_token",
		refreshToken,
		int(auth.RefreshTokenTTL.Seconds()),
		"/",
		"",
		config.AppConfig.Environment == "production", // Secure
		true, // HttpOnly
	)

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"user":         user.ToSafeUser(),
	})
}

func (h *Handler) RefreshToken(c *gin.Context) {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil {
		c.Error(errors.Unauthorized("Refresh token is missing", err))
		return
	}

	claims, err := auth.VerifyRefreshToken(refreshToken)
	if err != nil {
		c.Error(errors.Unauthorized("Invalid token or expired!", err))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil {
		c.Error(errors.Unauthorized("User not found", err))
		return
	}

	if user.TokenVersion != claims.TokenVersion {
		c.Error(errors.Unauthorized("Invalid token!", nil))
		return
	}

	newAccessToken, err := auth.GenerateAccessToken(user.ID, user.TokenVersion)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": newAccessToken,
	})
}

// Logout revokes every token of the caller by bumping the token version.
func (h *Handler) Logout(c *gin.Context) {
	if userID, ok := c.Get("user_id"); ok {
		if err := h.service.IncreaseTokenVersion(c.Request.Context(), userID.(uint64)); err != nil {
			log.Error().Err(err).Msg("token version bump failed")
		}
	}
	c.SetCookie("refresh_token", "", -1, "/", "", true, true)
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.Error(errors.Unauthorized("user not found", nil))
		return
	}

	user, err := h.service.GetUserByID(c.Request.Context(), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, user.ToSafeUser())
}
