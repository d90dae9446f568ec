// Package handler holds the plain HTTP endpoints of the gateway.
package handler

import (
	"net/http"

	"archaeologist/internal/analysis"
	"archaeologist/internal/plan"
	"archaeologist/internal/util/jsonutil"
)

// DebugHandler exposes health and introspection endpoints.
type DebugHandler struct {
	machine *analysis.Machine
	cache   *plan.CachedStore // optional
}

func NewDebugHandler(machine *analysis.Machine, cache *plan.CachedStore) *DebugHandler {
	return &DebugHandler{machine: machine, cache: cache}
}

func (h *DebugHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleState writes the current lifecycle snapshot.
func (h *DebugHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.machine.Snapshot())
}

// HandlePlanCache writes plan cache hit/miss counters.
func (h *DebugHandler) HandlePlanCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.cache == nil {
		http.Error(w, "plan store not configured", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.cache.Metrics())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := jsonutil.MarshalNoEscapeIndent(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
