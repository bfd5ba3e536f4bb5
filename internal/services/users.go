package services

import (
	"taskhub/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type UserService interface {
	GetProfile(db *gorm.DB, id uuid.UUID) (*models.User, error)
	SetThemeBackground(db *gorm.DB, id uuid.UUID, url string) (*models.User, error)
}

type UserServiceImpl struct{}

func NewUserService() *UserServiceImpl {
	return &UserServiceImpl{}
}

func (s *UserServiceImpl) GetProfile(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserServiceImpl) SetThemeBackground(db *gorm.DB, id uuid.UUID, url string) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&user).Update("theme_background_url", url).Error; err != nil {
		return nil, err
	}

	user.ThemeBackgroundURL = &url
	return &user, nil
}
