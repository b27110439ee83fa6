package orchestrator_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parallel-integrator/internal/auth"
	"parallel-integrator/internal/barrier"
	"parallel-integrator/internal/config"
	"parallel-integrator/internal/db"
	"parallel-integrator/internal/orchestrator"
)

const runBody = `{"equation":"1","x_start":0,"x_end":2,"y_start":0,"y_end":2,"step":1,"worker_count":2}`

// setupAPI поднимает роутер с локальным пулом и возвращает токен оператора
func setupAPI(t *testing.T) (*mux.Router, *harness, string) {
	t.Helper()
	h := newHarness(t, barrier.Broadcast)

	previous := config.AppConfig
	config.AppConfig = &config.Config{JWTSecret: "test-secret-key", JWTExpirationMinutes: 60}
	t.Cleanup(func() { config.AppConfig = previous })

	runner := orchestrator.NewRunner(h.coordinator(), 1)
	orchestrator.RunnerInstance = runner
	t.Cleanup(func() {
		runner.Wait()
		orchestrator.RunnerInstance = nil
	})

	token, err := auth.GenerateToken("operator")
	require.NoError(t, err)

	r := mux.NewRouter()
	orchestrator.RegisterRoutes(r)
	return r, h, token
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandleStartRun(t *testing.T) {
	r, _, token := setupAPI(t)

	rr := do(r, http.MethodPost, "/api/v1/runs", runBody, token)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp orchestrator.StartRunResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotEmpty(t, resp.RunID)

	// запись о прогоне видна сразу
	rr = do(r, http.MethodGet, "/api/v1/runs/"+resp.RunID, "", token)
	require.Equal(t, http.StatusOK, rr.Code)

	orchestrator.RunnerInstance.Wait()

	rr = do(r, http.MethodGet, "/api/v1/runs/"+resp.RunID, "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	var run db.Run
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&run))
	assert.Equal(t, db.StatusCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.InDelta(t, 4.0, *run.Result, 1e-12)
	assert.Len(t, run.Partials, 2)

	rr = do(r, http.MethodGet, "/api/v1/runs", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []db.Run
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&runs))
	assert.Len(t, runs, 1)
}

func TestHandleStartRun_Conflict(t *testing.T) {
	r, h, token := setupAPI(t)
	h.sampler.release = make(chan struct{})

	rr := do(r, http.MethodPost, "/api/v1/runs", runBody, token)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	rr = do(r, http.MethodPost, "/api/v1/runs", runBody, token)
	assert.Equal(t, http.StatusConflict, rr.Code)

	close(h.sampler.release)
	orchestrator.RunnerInstance.Wait()

	rr = do(r, http.MethodPost, "/api/v1/runs", runBody, token)
	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestHandleStartRun_Invalid(t *testing.T) {
	r, _, token := setupAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"Not JSON", `{`},
		{"Missing step", `{"equation":"1","x_start":0,"x_end":1,"y_start":0,"y_end":1}`},
		{"Reversed bounds", `{"equation":"1","x_start":1,"x_end":0,"y_start":0,"y_end":1,"step":0.1}`},
		{"Bad equation", `{"equation":"__import__('os')","x_start":0,"x_end":1,"y_start":0,"y_end":1,"step":0.1}`},
		{"Shutdown command", `{"command":"shutdown"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(r, http.MethodPost, "/api/v1/runs", tt.body, token)
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		})
	}
}

func TestHandleGetRunByID_NotFound(t *testing.T) {
	r, _, token := setupAPI(t)

	rr := do(r, http.MethodGet, "/api/v1/runs/missing", "", token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleGetRuns_BadLimit(t *testing.T) {
	r, _, token := setupAPI(t)

	rr := do(r, http.MethodGet, "/api/v1/runs?limit=zero", "", token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRoutes_RequireToken(t *testing.T) {
	r, _, _ := setupAPI(t)

	for _, path := range []string{"/api/v1/runs", "/api/v1/runs/x"} {
		rr := do(r, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
	rr := do(r, http.MethodPost, "/api/v1/runs", runBody, "expired")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRunner_Wait(t *testing.T) {
	h := newHarness(t, barrier.Counting)
	runner := orchestrator.NewRunner(h.coordinator(), 2)

	task, err := config.ParseTask([]byte(`{"equation":"x","x_start":0,"x_end":2,"y_start":0,"y_end":1,"step":1}`))
	require.NoError(t, err)

	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	runID, err := runner.Start(ctx, task)
	require.NoError(t, err)
	go func() {
		runner.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}

	run, err := db.GetRunByID(runID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, run.Status)
	require.NotNil(t, run.Result)
	assert.InDelta(t, 1.0, *run.Result, 1e-12)
}
