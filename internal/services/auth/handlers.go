package auth

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/marketplace-billing-api/internal/models"
	"github.com/user/marketplace-billing-api/internal/repository"
	"github.com/user/marketplace-billing-api/internal/services/email"
)

const (
	// Время жизни OTP кода
	otpExpirationMinutes = 5
)

// AuthHandler - обработчики авторизации
type AuthHandler struct {
	repo  *repository.Repository
	email *email.Service
}

// NewAuthHandler создаёт новый обработчик авторизации
func NewAuthHandler(repo *repository.Repository, emailService *email.Service) *AuthHandler {
	return &AuthHandler{repo: repo, email: emailService}
}

// RequestCodeRequest - запрос на отправку кода
type RequestCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestCode отправляет OTP код на email
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Введите корректный email"})
		return
	}

	userEmail := strings.ToLower(strings.TrimSpace(req.Email))

	// Находим или создаём пользователя
	user, err := h.repo.GetUserByEmail(userEmail)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сервера"})
		return
	}

	if user == nil {
		user = &models.User{
			Email: userEmail,
			Role:  "viewer",
		}
		if err := h.repo.CreateUser(user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания пользователя"})
			return
		}
	}

	code := GenerateOTPCode()

	otp := &models.OTPCode{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: time.Now().Add(otpExpirationMinutes * time.Minute),
	}
	if err := h.repo.CreateOTPCode(otp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания кода"})
		return
	}

	if err := h.email.SendOTP(userEmail, code); err != nil {
		log.Printf("[Auth] Ошибка отправки OTP на %s: %v", userEmail, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Код отправлен на " + userEmail,
		"email":   userEmail,
	})
}

// VerifyCodeRequest - запрос на проверку кода
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

// VerifyCode проверяет OTP код и выдаёт JWT
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный формат запроса"})
		return
	}

	userEmail := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.repo.GetUserByEmail(userEmail)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Пользователь не найден"})
		return
	}

	otp, err := h.repo.GetValidOTPCode(user.ID, req.Code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки кода"})
		return
	}

	if otp == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный или просроченный код"})
		return
	}

	h.repo.MarkOTPUsed(otp.ID)

	token, err := GenerateJWT(user.ID, user.Email, user.IsAdmin, user.Role, user.PartnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка генерации токена"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"is_admin":   user.IsAdmin,
			"role":       user.Role,
			"partner_id": user.PartnerID,
		},
	})
}

// GetCurrentUser возвращает данные текущего пользователя
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Не авторизован"})
		return
	}

	user, err := h.repo.GetUserByID(userID.(uint))
	if err != nil || user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь не найден"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"is_admin":   user.IsAdmin,
		"role":       user.Role,
		"partner_id": user.PartnerID,
	})
}
