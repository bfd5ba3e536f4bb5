package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"taskhub/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var allowedImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

type UserHandler struct {
	db          *gorm.DB
	userService services.UserService
	uploadsDir  string
	maxUpload   int64
}

func NewUserHandler(db *gorm.DB, userService services.UserService, uploadsDir string, maxUpload int64) *UserHandler {
	return &UserHandler{
		db:          db,
		userService: userService,
		uploadsDir:  uploadsDir,
		maxUpload:   maxUpload,
	}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.userService.GetProfile(h.db, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user.Public())
}

// UploadTheme stores a single theme background image. One atomic write per
// request: oversized or missing files fail before anything touches disk.
func (h *UserHandler) UploadTheme(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}

	if file.Size > h.maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("image exceeds maximum size of %d bytes", h.maxUpload)})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	filename := fmt.Sprintf("%s-%d%s", userID, time.Now().UnixNano(), ext)
	dst := filepath.Join(h.uploadsDir, filename)

	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, err)
		return
	}

	url := "/uploads/" + filename
	if _, err := h.userService.SetThemeBackground(h.db, userID, url); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "theme_background_url": url})
}
