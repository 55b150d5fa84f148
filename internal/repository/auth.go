package repository

import (
	"time"

	"github.com/user/marketplace-billing-api/internal/models"
	"gorm.io/gorm"
)

// === Users / OTP ===

// GetUserByEmail возвращает пользователя по email
func (r *Repository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID возвращает пользователя по ID
func (r *Repository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser создаёт пользователя
func (r *Repository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}

// CreateOTPCode создаёт код подтверждения
func (r *Repository) CreateOTPCode(code *models.OTPCode) error {
	return r.db.Create(code).Error
}

// GetValidOTPCode возвращает действующий неиспользованный код
func (r *Repository) GetValidOTPCode(userID uint, code string) (*models.OTPCode, error) {
	var otp models.OTPCode
	if err := r.db.Where("user_id = ? AND code = ? AND used = ? AND expires_at > ?",
		userID, code, false, time.Now()).First(&otp).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &otp, nil
}

// MarkOTPUsed помечает код использованным
func (r *Repository) MarkOTPUsed(id uint) error {
	return r.db.Model(&models.OTPCode{}).Where("id = ?", id).Update("used", true).Error
}
