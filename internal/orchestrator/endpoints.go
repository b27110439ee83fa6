package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"parallel-integrator/internal/auth"
	"parallel-integrator/internal/config"
	"parallel-integrator/internal/db"
	"parallel-integrator/internal/logger"
	"parallel-integrator/internal/protocol"
)

// RegisterRoutes подключает публичный вход и защищенный API прогонов
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/login", auth.Login).Methods("POST")

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(auth.AuthMiddleware)
	protected.HandleFunc("/runs", HandleStartRun).Methods("POST")
	protected.HandleFunc("/runs", HandleGetRuns).Methods("GET")
	protected.HandleFunc("/runs/{id}", HandleGetRunByID).Methods("GET")
}

type StartRunResponse struct {
	RunID string `json:"run_id"`
}

// HandleStartRun принимает описание задачи в формате task.json
func HandleStartRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	task, err := config.ParseTask(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	login, _ := auth.RequireAuth(r)
	logger.Log.Infow("Received run request", "equation", task.Equation, "operator", login)

	// прогон живет дольше запроса
	runID, err := RunnerInstance.Start(context.WithoutCancel(r.Context()), task)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, protocol.ErrConfiguration):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(StartRunResponse{RunID: runID}); err != nil {
		logger.Log.Errorw("Failed to write response", "error", err)
	}
}

func HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			http.Error(w, "Неверный limit", http.StatusBadRequest)
			return
		}
	}

	runs, err := db.ListRuns(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		logger.Log.Errorw("Failed to write response", "error", err)
	}
}

func HandleGetRunByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := db.GetRunByID(id)
	if err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(run); err != nil {
		logger.Log.Errorw("Failed to write response", "error", err)
	}
}
