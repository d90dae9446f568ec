// Package analysisv1 defines the AnalysisService RPC surface: messages,
// procedure names, handler registration and a typed client.
package analysisv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const AnalysisServiceName = "archaeologist.v1.AnalysisService"

const (
	AnalysisServiceStartAnalysisProcedure = "/" + AnalysisServiceName + "/StartAnalysis"
	AnalysisServiceGetStateProcedure      = "/" + AnalysisServiceName + "/GetState"
	AnalysisServiceWaitAnalysisProcedure  = "/" + AnalysisServiceName + "/WaitAnalysis"
	AnalysisServiceWatchStateProcedure    = "/" + AnalysisServiceName + "/WatchState"
	AnalysisServiceResetProcedure         = "/" + AnalysisServiceName + "/Reset"
	AnalysisServiceSavePlanProcedure      = "/" + AnalysisServiceName + "/SavePlan"
	AnalysisServiceListPlansProcedure     = "/" + AnalysisServiceName + "/ListPlans"
	AnalysisServiceGetFileDiffProcedure   = "/" + AnalysisServiceName + "/GetFileDiff"
)

type AnalysisServiceHandler interface {
	StartAnalysis(context.Context, *connect.Request[StartAnalysisRequest]) (*connect.Response[StartAnalysisResponse], error)
	GetState(context.Context, *connect.Request[GetStateRequest]) (*connect.Response[GetStateResponse], error)
	WaitAnalysis(context.Context, *connect.Request[WaitAnalysisRequest]) (*connect.Response[WaitAnalysisResponse], error)
	WatchState(context.Context, *connect.Request[WatchStateRequest], *connect.ServerStream[WatchStateResponse]) error
	Reset(context.Context, *connect.Request[ResetRequest]) (*connect.Response[ResetResponse], error)
	SavePlan(context.Context, *connect.Request[SavePlanRequest]) (*connect.Response[SavePlanResponse], error)
	ListPlans(context.Context, *connect.Request[ListPlansRequest]) (*connect.Response[ListPlansResponse], error)
	GetFileDiff(context.Context, *connect.Request[GetFileDiffRequest]) (*connect.Response[GetFileDiffResponse], error)
}

// NewAnalysisServiceHandler returns the mount path and handler for svc.
func NewAnalysisServiceHandler(svc AnalysisServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	routes := map[string]http.Handler{
		AnalysisServiceStartAnalysisProcedure: connect.NewUnaryHandler(AnalysisServiceStartAnalysisProcedure, svc.StartAnalysis, opts...),
		AnalysisServiceGetStateProcedure:      connect.NewUnaryHandler(AnalysisServiceGetStateProcedure, svc.GetState, opts...),
		AnalysisServiceWaitAnalysisProcedure:  connect.NewUnaryHandler(AnalysisServiceWaitAnalysisProcedure, svc.WaitAnalysis, opts...),
		AnalysisServiceWatchStateProcedure:    connect.NewServerStreamHandler(AnalysisServiceWatchStateProcedure, svc.WatchState, opts...),
		AnalysisServiceResetProcedure:         connect.NewUnaryHandler(AnalysisServiceResetProcedure, svc.Reset, opts...),
		AnalysisServiceSavePlanProcedure:      connect.NewUnaryHandler(AnalysisServiceSavePlanProcedure, svc.SavePlan, opts...),
		AnalysisServiceListPlansProcedure:     connect.NewUnaryHandler(AnalysisServiceListPlansProcedure, svc.ListPlans, opts...),
		AnalysisServiceGetFileDiffProcedure:   connect.NewUnaryHandler(AnalysisServiceGetFileDiffProcedure, svc.GetFileDiff, opts...),
	}
	return "/" + AnalysisServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// AnalysisServiceClient is a typed client for AnalysisService.
type AnalysisServiceClient struct {
	startAnalysis *connect.Client[StartAnalysisRequest, StartAnalysisResponse]
	getState      *connect.Client[GetStateRequest, GetStateResponse]
	waitAnalysis  *connect.Client[WaitAnalysisRequest, WaitAnalysisResponse]
	watchState    *connect.Client[WatchStateRequest, WatchStateResponse]
	reset         *connect.Client[ResetRequest, ResetResponse]
	savePlan      *connect.Client[SavePlanRequest, SavePlanResponse]
	listPlans     *connect.Client[ListPlansRequest, ListPlansResponse]
	getFileDiff   *connect.Client[GetFileDiffRequest, GetFileDiffResponse]
}

func NewAnalysisServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AnalysisServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &AnalysisServiceClient{
		startAnalysis: connect.NewClient[StartAnalysisRequest, StartAnalysisResponse](httpClient, baseURL+AnalysisServiceStartAnalysisProcedure, opts...),
		getState:      connect.NewClient[GetStateRequest, GetStateResponse](httpClient, baseURL+AnalysisServiceGetStateProcedure, opts...),
		waitAnalysis:  connect.NewClient[WaitAnalysisRequest, WaitAnalysisResponse](httpClient, baseURL+AnalysisServiceWaitAnalysisProcedure, opts...),
		watchState:    connect.NewClient[WatchStateRequest, WatchStateResponse](httpClient, baseURL+AnalysisServiceWatchStateProcedure, opts...),
		reset:         connect.NewClient[ResetRequest, ResetResponse](httpClient, baseURL+AnalysisServiceResetProcedure, opts...),
		savePlan:      connect.NewClient[SavePlanRequest, SavePlanResponse](httpClient, baseURL+AnalysisServiceSavePlanProcedure, opts...),
		listPlans:     connect.NewClient[ListPlansRequest, ListPlansResponse](httpClient, baseURL+AnalysisServiceListPlansProcedure, opts...),
		getFileDiff:   connect.NewClient[GetFileDiffRequest, GetFileDiffResponse](httpClient, baseURL+AnalysisServiceGetFileDiffProcedure, opts...),
	}
}

func (c *AnalysisServiceClient) StartAnalysis(ctx context.Context, req *connect.Request[StartAnalysisRequest]) (*connect.Response[StartAnalysisResponse], error) {
	return c.startAnalysis.CallUnary(ctx, req)
}

func (c *AnalysisServiceClient) GetState(ctx context.Context, req *connect.Request[GetStateRequest]) (*connect.Response[GetStateResponse], error) {
	return c.getState.CallUnary(ctx, req)
}

func (c *AnalysisServiceClient) WaitAnalysis(ctx context.Context, req *connect.Request[WaitAnalysisRequest]) (*connect.Response[WaitAnalysisResponse], error) {
	return c.waitAnalysis.CallUnary(ctx, req)
}

func (c *AnalysisServiceClient) WatchState(ctx context.Context, req *connect.Request[WatchStateRequest]) (*connect.ServerStreamForClient[WatchStateResponse], error) {
	return c.watchState.CallServerStream(ctx, req)
}

func (c *AnalysisServiceClient) Reset(ctx context.Context, req *connect.Request[ResetRequest]) (*connect.Response[ResetResponse], error) {
	return c.reset.CallUnary(ctx, req)
}

func (c *AnalysisServiceClient) SavePlan(ctx context.Context, req *connect.Request[SavePlanRequest]) (*connect.Response[SavePlanResponse], error) {
	return c.savePlan.CallUnary(ctx, req)
}

func (c *AnalysisServiceClient) ListPlans(ctx context.Context, req *connect.Request[ListPlansRequest]) (*connect.Response[ListPlansResponse], error) {
	return c.listPlans.CallUnary(ctx, req)
}

func (c *AnalysisServiceClient) GetFileDiff(ctx context.Context, req *connect.Request[GetFileDiffRequest]) (*connect.Response[GetFileDiffResponse], error) {
	return c.getFileDiff.CallUnary(ctx, req)
}
