package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"taskhub/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const resetTokenTTL = time.Hour

type ResetService interface {
	RequestReset(db *gorm.DB, email string) (string, error)
	CompleteReset(db *gorm.DB, rawToken, newPassword string, name *string) (*models.User, error)
}

type ResetServiceImpl struct {
	bcryptCost int
}

func NewResetService(bcryptCost int) *ResetServiceImpl {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &ResetServiceImpl{bcryptCost: bcryptCost}
}

// GenerateResetToken returns a 32-byte random token in hex.
func GenerateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashResetToken digests a raw reset token for storage. The token carries
// 256 bits of entropy, so a fast one-way hash is sufficient; only the digest
// is ever persisted.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RequestReset stores a reset-token digest and a one-hour expiry on the
// user, overwriting any pending reset so only the newest token is valid.
// An unknown email succeeds with an empty token: the response is
// indistinguishable from the known-email case.
func (s *ResetServiceImpl) RequestReset(db *gorm.DB, email string) (string, error) {
	var user models.User
	if err := db.Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}

	raw, err := GenerateResetToken()
	if err != nil {
		return "", err
	}

	digest := HashResetToken(raw)
	expires := time.Now().Add(resetTokenTTL)

	err = db.Model(&user).Updates(map[string]interface{}{
		"reset_token_hash": digest,
		"reset_expires_at": expires,
	}).Error
	if err != nil {
		return "", err
	}

	return raw, nil
}

// CompleteReset consumes a reset token exactly once: the matched row has its
// password replaced and both reset columns cleared, so a second presentation
// of the same token no longer matches.
func (s *ResetServiceImpl) CompleteReset(db *gorm.DB, rawToken, newPassword string, name *string) (*models.User, error) {
	digest := HashResetToken(rawToken)

	var user models.User
	err := db.Where("reset_token_hash = ? AND reset_expires_at > ?", digest, time.Now()).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"password":         string(hashedPassword),
		"reset_token_hash": nil,
		"reset_expires_at": nil,
	}
	if name != nil {
		updates["name"] = *name
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}

	user.Password = string(hashedPassword)
	user.ResetTokenHash = nil
	user.ResetExpiresAt = nil
	if name != nil {
		user.Name = name
	}

	return &user, nil
}
