package server

import (
	"net/http"

	"archaeologist/internal/gateway/api/analysisv1"
	"archaeologist/internal/gateway/handler"
	"archaeologist/internal/gateway/handler/rpc"
	"archaeologist/internal/gateway/middleware"
)

func NewMux(
	analysisHandler *rpc.AnalysisHandler,
	debugHandler *handler.DebugHandler,
	corsOrigins []string,
) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	mux.Handle(analysisv1.NewAnalysisServiceHandler(analysisHandler))

	// Streaming
	mux.HandleFunc("/ws/lifecycle", analysisHandler.HandleLifecycleWS)

	// Debug Handlers
	mux.HandleFunc("/healthz", debugHandler.HandleHealth)
	mux.HandleFunc("/debug/state", debugHandler.HandleState)
	mux.HandleFunc("/debug/plan-cache", debugHandler.HandlePlanCache)

	// Middleware
	return middleware.CORS(corsOrigins)(mux)
}
