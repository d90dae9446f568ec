package analysisv1

import (
	"archaeologist/internal/analysis"
	"archaeologist/internal/diff"
	"archaeologist/internal/types"
)

type StartAnalysisRequest struct {
	SourceID string `json:"sourceId"`
}

type StartAnalysisResponse struct {
	RunID    string            `json:"runId"`
	Snapshot analysis.Snapshot `json:"snapshot"`
}

type GetStateRequest struct{}

type GetStateResponse struct {
	Snapshot analysis.Snapshot `json:"snapshot"`
}

type WaitAnalysisRequest struct {
	RunID string `json:"runId"`
}

type WaitAnalysisResponse struct {
	Snapshot analysis.Snapshot `json:"snapshot"`
}

type WatchStateRequest struct{}

type WatchStateResponse struct {
	Snapshot analysis.Snapshot `json:"snapshot"`
}

type ResetRequest struct{}

type ResetResponse struct {
	Snapshot analysis.Snapshot `json:"snapshot"`
}

type SavePlanRequest struct{}

type SavePlanResponse struct {
	PlanID   string            `json:"planId"`
	Snapshot analysis.Snapshot `json:"snapshot"`
}

type ListPlansRequest struct {
	Repo string `json:"repo,omitempty"`
}

type ListPlansResponse struct {
	Plans []types.PlanRecord `json:"plans"`
}

type GetFileDiffRequest struct {
	Filename string `json:"filename"`
}

type GetFileDiffResponse struct {
	Filename    string     `json:"filename"`
	Rows        []diff.Row `json:"rows"`
	Stats       diff.Stats `json:"stats"`
	ChangeNotes []string   `json:"changesSummary"`
}
