package handler

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archaeologist/internal/analysis"
	"archaeologist/internal/collect"
	"archaeologist/internal/llm"
	"archaeologist/internal/plan"
)

func newMachine(t *testing.T) *analysis.Machine {
	t.Helper()
	m, err := analysis.New(analysis.Options{
		Collector: collect.Demo(0),
		Client:    llm.NewFakeClient(),
		Logger:    log.New(io.Discard, "", 0),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestDebugHandler(t *testing.T) {
	cache := plan.NewCachedStore(plan.NewMemoryStore(), plan.DefaultCacheConfig())
	h := NewDebugHandler(newMachine(t), cache)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleState(rec, httptest.NewRequest(http.MethodGet, "/debug/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap analysis.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, analysis.PhaseIdle, snap.Phase)

	rec = httptest.NewRecorder()
	h.HandleState(rec, httptest.NewRequest(http.MethodPost, "/debug/state", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.HandlePlanCache(rec, httptest.NewRequest(http.MethodGet, "/debug/plan-cache", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var metrics plan.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.Zero(t, metrics.RecordHits)
}

func TestDebugHandler_NoPlanCache(t *testing.T) {
	h := NewDebugHandler(newMachine(t), nil)
	rec := httptest.NewRecorder()
	h.HandlePlanCache(rec, httptest.NewRequest(http.MethodGet, "/debug/plan-cache", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
