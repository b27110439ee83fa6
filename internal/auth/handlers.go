package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"parallel-integrator/internal/logger"
)

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login обрабатывает запрос на вход оператора (POST /api/v1/login)
func Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Ошибка при разборе JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := Authenticate(req.Login, req.Password); err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Log.Warnw("Failed login", "login", req.Login)
			http.Error(w, "Неверный логин или пароль", http.StatusUnauthorized)
		case errors.Is(err, ErrLoginDisabled):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, "Ошибка при аутентификации: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	token, err := GenerateToken(req.Login)
	if err != nil {
		http.Error(w, "Ошибка при создании токена: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := struct {
		Token string `json:"token"`
	}{
		Token: token,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
