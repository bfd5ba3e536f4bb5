package models

import (
	"time"

	"github.com/gofrs/uuid"
)

type User struct {
	ID                 uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Email              string     `json:"email" gorm:"uniqueIndex;not null"`
	Password           string     `json:"-" gorm:"not null"`
	Name               *string    `json:"name,omitempty"`
	ThemeBackgroundURL *string    `json:"theme_background_url,omitempty"`
	ResetTokenHash     *string    `json:"-"`
	ResetExpiresAt     *time.Time `json:"-" gorm:"type:timestamptz"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// PublicUser is the caller-visible projection of a User.
type PublicUser struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	Name               *string   `json:"name,omitempty"`
	ThemeBackgroundURL *string   `json:"theme_background_url,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		ThemeBackgroundURL: u.ThemeBackgroundURL,
	}
}
