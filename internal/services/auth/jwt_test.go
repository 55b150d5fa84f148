package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	partnerID := uint(7)
	token, err := GenerateJWT(42, "seller@example.uz", false, "partner", &partnerID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "seller@example.uz", claims.Email)
	require.False(t, claims.IsAdmin)
	require.Equal(t, "partner", claims.Role)
	require.NotNil(t, claims.PartnerID)
	require.Equal(t, uint(7), *claims.PartnerID)
	require.Equal(t, "marketplace-billing", claims.Issuer)
}

func TestValidateJWTInvalid(t *testing.T) {
	_, err := ValidateJWT("not-a-token")
	require.Error(t, err)

	// Токен с другой подписью
	_, err = ValidateJWT("eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJ1c2VyX2lkIjo0Mn0.invalid")
	require.Error(t, err)
}

func TestGenerateOTPCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 20; i++ {
		code := GenerateOTPCode()
		require.True(t, pattern.MatchString(code), "код должен быть 6 цифр: %s", code)
	}
}
