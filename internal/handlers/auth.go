package handlers

import (
	"net/http"

	"taskhub/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db           *gorm.DB
	authService  services.AuthService
	resetService services.ResetService
	tokenService services.TokenService
	production   bool
}

func NewAuthHandler(db *gorm.DB, auth services.AuthService, reset services.ResetService, tokens services.TokenService, production bool) *AuthHandler {
	return &AuthHandler{
		db:           db,
		authService:  auth,
		resetService: reset,
		tokenService: tokens,
		production:   production,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string  `json:"email" binding:"required,email"`
		Password string  `json:"password" binding:"required,min=8,max=72"`
		Name     *string `json:"name" binding:"omitempty,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.Register(h.db, req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokenService.Issue(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.Public(), "token": token})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.Login(h.db, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokenService.Issue(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Public(), "token": token})
}

// Forgot always answers ok regardless of whether the email exists. Outside
// production the raw reset token is echoed back for callers without an
// email-delivery integration.
func (h *AuthHandler) Forgot(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rawToken, err := h.resetService.RequestReset(h.db, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"ok": true}
	if !h.production && rawToken != "" {
		body["token"] = rawToken
	}
	c.JSON(http.StatusOK, body)
}

func (h *AuthHandler) Reset(c *gin.Context) {
	var req struct {
		Token    string  `json:"token" binding:"required"`
		Password string  `json:"password" binding:"required,min=8,max=72"`
		Name     *string `json:"name" binding:"omitempty,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.resetService.CompleteReset(h.db, req.Token, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokenService.Issue(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.Public(), "token": token})
}
