package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 1)

	tok, err := m.GenerateToken("ayse", RoleOperator)
	require.NoError(t, err)

	claims, err := m.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ayse", claims.Username)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, "ayse", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := NewJWTManager("a", 1).GenerateToken("ayse", RoleOperator)
	require.NoError(t, err)

	_, err = NewJWTManager("b", 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", 1)
	claims := CustomClaims{
		Username: "ayse",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestGenerateTokenRequiresUsername(t *testing.T) {
	_, err := NewJWTManager("secret", 1).GenerateToken("", RoleOperator)
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	a, b := GenerateRandomString(8), GenerateRandomString(8)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
