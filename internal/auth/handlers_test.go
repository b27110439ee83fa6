package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallel-integrator/internal/auth"
)

func TestLogin(t *testing.T) {
	setupTest(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"Valid credentials", `{"login":"operator","password":"testpassword"}`, http.StatusOK},
		{"Wrong password", `{"login":"operator","password":"wrong"}`, http.StatusUnauthorized},
		{"Invalid JSON", `{"login":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			auth.Login(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code)

			if tt.wantStatus == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
				claims, err := auth.ValidateToken(resp.Token)
				require.NoError(t, err)
				assert.Equal(t, "operator", claims.Login)
			}
		})
	}
}
