package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"

	"archaeologist/internal/analysis"
	"archaeologist/internal/diff"
	"archaeologist/internal/gateway/api/analysisv1"
	"archaeologist/internal/plan"
)

// AnalysisHandler serves AnalysisService on top of one lifecycle machine.
type AnalysisHandler struct {
	machine *analysis.Machine
	plans   *plan.Gateway // optional
}

var _ analysisv1.AnalysisServiceHandler = (*AnalysisHandler)(nil)

func NewAnalysisHandler(machine *analysis.Machine, plans *plan.Gateway) *AnalysisHandler {
	return &AnalysisHandler{machine: machine, plans: plans}
}

func (h *AnalysisHandler) StartAnalysis(_ context.Context, req *connect.Request[analysisv1.StartAnalysisRequest]) (*connect.Response[analysisv1.StartAnalysisResponse], error) {
	runID, err := h.machine.Start(req.Msg.SourceID)
	if err != nil {
		return nil, toAnalysisError(err)
	}
	return connect.NewResponse(&analysisv1.StartAnalysisResponse{
		RunID:    runID,
		Snapshot: h.machine.Snapshot(),
	}), nil
}

func (h *AnalysisHandler) GetState(_ context.Context, _ *connect.Request[analysisv1.GetStateRequest]) (*connect.Response[analysisv1.GetStateResponse], error) {
	return connect.NewResponse(&analysisv1.GetStateResponse{Snapshot: h.machine.Snapshot()}), nil
}

func (h *AnalysisHandler) WaitAnalysis(ctx context.Context, req *connect.Request[analysisv1.WaitAnalysisRequest]) (*connect.Response[analysisv1.WaitAnalysisResponse], error) {
	runID := strings.TrimSpace(req.Msg.RunID)
	if runID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("run_id is required"))
	}
	snap, err := h.machine.Wait(ctx, runID)
	if err != nil {
		return nil, toAnalysisError(err)
	}
	return connect.NewResponse(&analysisv1.WaitAnalysisResponse{Snapshot: snap}), nil
}

// WatchState streams lifecycle snapshots until the client goes away.
func (h *AnalysisHandler) WatchState(ctx context.Context, _ *connect.Request[analysisv1.WatchStateRequest], stream *connect.ServerStream[analysisv1.WatchStateResponse]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for snap := range h.machine.Subscribe(ctx) {
		if err := stream.Send(&analysisv1.WatchStateResponse{Snapshot: snap}); err != nil {
			return err
		}
	}
	return nil
}

func (h *AnalysisHandler) Reset(_ context.Context, _ *connect.Request[analysisv1.ResetRequest]) (*connect.Response[analysisv1.ResetResponse], error) {
	h.machine.Reset()
	return connect.NewResponse(&analysisv1.ResetResponse{Snapshot: h.machine.Snapshot()}), nil
}

func (h *AnalysisHandler) SavePlan(ctx context.Context, _ *connect.Request[analysisv1.SavePlanRequest]) (*connect.Response[analysisv1.SavePlanResponse], error) {
	id, err := h.machine.SavePlan(ctx)
	if err != nil {
		return nil, toAnalysisError(err)
	}
	return connect.NewResponse(&analysisv1.SavePlanResponse{
		PlanID:   id,
		Snapshot: h.machine.Snapshot(),
	}), nil
}

func (h *AnalysisHandler) ListPlans(ctx context.Context, req *connect.Request[analysisv1.ListPlansRequest]) (*connect.Response[analysisv1.ListPlansResponse], error) {
	if h.plans == nil {
		return nil, toAnalysisError(analysis.ErrNoPlanStore)
	}
	recs, err := h.plans.List(ctx, strings.TrimSpace(req.Msg.Repo))
	if err != nil {
		return nil, toAnalysisError(err)
	}
	return connect.NewResponse(&analysisv1.ListPlansResponse{Plans: recs}), nil
}

// GetFileDiff aligns the original and refactored text of one file of the
// current report.
func (h *AnalysisHandler) GetFileDiff(_ context.Context, req *connect.Request[analysisv1.GetFileDiffRequest]) (*connect.Response[analysisv1.GetFileDiffResponse], error) {
	name := strings.TrimSpace(req.Msg.Filename)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("filename is required"))
	}
	snap := h.machine.Snapshot()
	if snap.Report == nil {
		return nil, toAnalysisError(analysis.ErrNoReport)
	}
	f, ok := snap.Report.File(name)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("file %q not found in report", name))
	}
	rows := diff.Compare(f.OriginalContent, f.NewContent)
	return connect.NewResponse(&analysisv1.GetFileDiffResponse{
		Filename:    f.Filename,
		Rows:        rows,
		Stats:       diff.Summarize(rows),
		ChangeNotes: f.ChangeNotes,
	}), nil
}

func toAnalysisError(err error) error {
	switch {
	case errors.Is(err, analysis.ErrRunInFlight), errors.Is(err, analysis.ErrNoReport):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, analysis.ErrNoPlanStore):
		return connect.NewError(connect.CodeUnimplemented, err)
	case errors.Is(err, analysis.ErrUnknownRun), errors.Is(err, plan.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, analysis.ErrRunDiscarded):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case plan.IsPersistence(err):
		return connect.NewError(connect.CodeUnavailable, err)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case strings.Contains(msg, "not found"):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("analysis service failed: %w", err))
	}
}
