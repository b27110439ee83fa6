package auth_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"parallel-integrator/internal/auth"
	"parallel-integrator/internal/config"
)

const testPassword = "testpassword"

func setupTest(t *testing.T) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	previous := config.AppConfig
	config.AppConfig = &config.Config{
		JWTSecret:            "test-secret-key",
		JWTExpirationMinutes: 60,
		OperatorLogin:        "operator",
		OperatorPasswordHash: string(hash),
	}
	t.Cleanup(func() { config.AppConfig = previous })
}

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))

	_, err = auth.HashPassword("")
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	setupTest(t)

	tests := []struct {
		name     string
		login    string
		password string
		wantErr  error
	}{
		{"Valid credentials", "operator", testPassword, nil},
		{"Wrong password", "operator", "nope", auth.ErrInvalidCredentials},
		{"Wrong login", "admin", testPassword, auth.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.Authenticate(tt.login, tt.password)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// Неверный логин проверяется не быстрее пароля
func TestAuthenticate_WrongLoginComparesHash(t *testing.T) {
	setupTest(t)
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.DefaultCost)
	require.NoError(t, err)
	config.AppConfig.OperatorPasswordHash = string(hash)

	started := time.Now()
	err = auth.Authenticate("admin", testPassword)
	elapsed := time.Since(started)

	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestAuthenticate_Disabled(t *testing.T) {
	setupTest(t)
	config.AppConfig.OperatorPasswordHash = ""
	assert.ErrorIs(t, auth.Authenticate("operator", testPassword), auth.ErrLoginDisabled)
}

func TestGenerateAndValidateToken(t *testing.T) {
	setupTest(t)

	token, err := auth.GenerateToken("operator")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Login)
	assert.Equal(t, "operator", claims.Subject)
}

func TestValidateToken(t *testing.T) {
	setupTest(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		Login: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString([]byte("test-secret-key"))
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{Login: "operator"})
	foreignToken, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"Expired", expiredToken, auth.ErrExpiredToken},
		{"Wrong secret", foreignToken, auth.ErrInvalidToken},
		{"Garbage", "not.a.token", auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{"Valid", "Bearer abc", "abc", nil},
		{"Missing", "", "", auth.ErrMissingAuthHeader},
		{"Wrong scheme", "Basic abc", "", auth.ErrInvalidAuthHeader},
		{"Extra parts", "Bearer a b", "", auth.ErrInvalidAuthHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, err)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := auth.ExtractTokenFromHeader(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
