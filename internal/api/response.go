package api

import (
	"time"

	"github.com/cxops/incontact-adapter/pkg/model"
)

// FetchAcceptedResponse acknowledges a fetch that now runs in the background.
// The run ID keys the runs endpoints; terminal outcomes also arrive as
// report lifecycle events.
type FetchAcceptedResponse struct {
	Status   string `json:"status"`
	RunID    string `json:"runId"`
	ClientID string `json:"clientId"`
	ReportID string `json:"reportId,omitempty"`
	ErrorMsg string `json:"errorMessage,omitempty"`
}

// RunResponse represents one report fetch run.
type RunResponse struct {
	RunID       string     `json:"runId"`
	ClientID    string     `json:"clientId"`
	ReportID    string     `json:"reportId"`
	JobID       string     `json:"jobId,omitempty"`
	Status      string     `json:"status"`
	OutputPath  string     `json:"outputPath"`
	FileName    string     `json:"fileName,omitempty"`
	Bytes       int64      `json:"bytes,omitempty"`
	Checks      int        `json:"checks,omitempty"`
	ErrorMsg    string     `json:"errorMessage,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// RunListResponse wraps a page of runs for one report.
type RunListResponse struct {
	ReportID string        `json:"reportId"`
	Runs     []RunResponse `json:"runs"`
	Count    int           `json:"count"`
}

// toRunResponse converts a run record to its API shape.
func toRunResponse(run model.ReportRun) RunResponse {
	return RunResponse{
		RunID:       run.ID,
		ClientID:    run.ClientID,
		ReportID:    run.ReportID,
		JobID:       run.JobID,
		Status:      string(run.Status),
		OutputPath:  run.OutputPath,
		FileName:    run.FileName,
		Bytes:       run.Bytes,
		Checks:      run.Checks,
		ErrorMsg:    run.Error,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
}
