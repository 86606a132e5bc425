package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/actorkit/config"
	"github.com/use-agent/actorkit/models"
	"github.com/use-agent/actorkit/store"
)

type fakeRunner struct {
	resp *models.RunResponse
	err  error
	got  *models.RunRequest
}

func (f *fakeRunner) Run(_ context.Context, req *models.RunRequest) (*models.RunResponse, error) {
	f.got = req
	return f.resp, f.err
}

type fakePool struct{ stats models.PoolStats }

func (f fakePool) Stats() models.PoolStats { return f.stats }

const apiKey = "test-key"

type testServer struct {
	handler http.Handler
	store   *store.Store
	runner  *fakeRunner
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Defaults()
	cfg.Server.Mode = "test"
	cfg.Auth.APIKeys = []string{apiKey}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}

	runner := &fakeRunner{}
	r := NewRouter(Deps{
		Actors:     s,
		Executions: s,
		Runner:     runner,
		Pool:       fakePool{stats: models.PoolStats{MaxPages: 10, ActivePages: 9}},
		DB:         s,
	}, cfg, time.Now())
	return &testServer{handler: r, store: s, runner: runner}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth_NoAuth(t *testing.T) {
	ts := newTestServer(t)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	h := decode[models.HealthResponse](t, w)
	assert.Equal(t, "degraded", h.Status, "9 of 10 pages leased")
	assert.Equal(t, 10, h.PoolStats.MaxPages)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_Required(t *testing.T) {
	ts := newTestServer(t)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/actors/x", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, decode[models.ErrorResponse](t, w).Error.Code)
}

func TestActors_CreateGetConflict(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/actors", models.CreateActorRequest{Namespace: "jobs", Title: "Jobs"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.Actor](t, w)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, created.UserID, "key_")

	w = ts.do(t, http.MethodGet, "/api/v1/actors/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[models.Actor](t, w).ID)

	w = ts.do(t, http.MethodPost, "/api/v1/actors", models.CreateActorRequest{Namespace: "jobs", Title: "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ErrCodeActorExists, decode[models.ErrorResponse](t, w).Error.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/actors/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeActorNotFound, decode[models.ErrorResponse](t, w).Error.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/actors", map[string]string{"namespace": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActors_UpdateFilters(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/actors", models.CreateActorRequest{Namespace: "jobs", Title: "Jobs"})

	w := ts.do(t, http.MethodPut, "/api/v1/actors/jobs/filters", models.ResponseFilters{SelectedResponseID: "resp_3", Limit: 10})
	require.Equal(t, http.StatusOK, w.Code)

	a, err := ts.store.FindActor(context.Background(), "jobs")
	require.NoError(t, err)
	require.NotNil(t, a.ResponseFilters)
	assert.Equal(t, "resp_3", a.ResponseFilters.SelectedResponseID)

	w = ts.do(t, http.MethodPut, "/api/v1/actors/jobs/filters", map[string]any{"limit": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRun(t *testing.T) {
	ts := newTestServer(t)

	ts.runner.resp = &models.RunResponse{Success: true, ExecutionID: "e1", Status: models.StatusCompleted}
	w := ts.do(t, http.MethodPost, "/api/v1/actors/jobs/run", map[string]any{"intent": "latest postings"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jobs", ts.runner.got.ActorRef)
	assert.Equal(t, 120, ts.runner.got.Timeout)
	assert.Equal(t, "e1", decode[models.RunResponse](t, w).ExecutionID)

	ts.runner.resp = &models.RunResponse{ExecutionID: "e2", Status: models.StatusFailed}
	ts.runner.err = models.NewPlanningError("planner returned no url", nil)
	w = ts.do(t, http.MethodPost, "/api/v1/actors/jobs/run", map[string]any{"intent": "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "e2", decode[models.RunResponse](t, w).ExecutionID)

	ts.runner.resp = nil
	ts.runner.err = models.NewActorNotFoundError("jobs")
	w = ts.do(t, http.MethodPost, "/api/v1/actors/jobs/run", map[string]any{"intent": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/actors/jobs/run", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "intent is required")
}

func TestExecutions_GetAndList(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	ts.do(t, http.MethodPost, "/api/v1/actors", models.CreateActorRequest{Namespace: "jobs", Title: "Jobs"})
	a, err := ts.store.FindActor(ctx, "jobs")
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, ts.store.CreateExecution(ctx, &models.ActorExecution{
			ID: id, ActorID: a.ID, Status: models.StatusPending, StartTime: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	w := ts.do(t, http.MethodGet, "/api/v1/executions/mid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mid", decode[models.ActorExecution](t, w).ID)

	w = ts.do(t, http.MethodGet, "/api/v1/executions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/actors/jobs/executions?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.ExecutionListResponse](t, w)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Executions, 2)
	assert.Equal(t, "new", list.Executions[0].ID)
	assert.Equal(t, "mid", list.Executions[1].ID)

	w = ts.do(t, http.MethodGet, "/api/v1/actors/jobs/executions?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
