package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle status of a report fetch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusTimedOut  RunStatus = "timed_out"
	RunStatusFailed    RunStatus = "failed"
)

// ReportRun records one pass through the fetch pipeline: start a report job,
// poll it, download the finished file. One run produces at most one file.
type ReportRun struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	ReportID    string     `json:"report_id"`
	JobID       string     `json:"job_id,omitempty"`
	Status      RunStatus  `json:"status"`
	OutputPath  string     `json:"output_path"`
	FileName    string     `json:"file_name,omitempty"`
	Bytes       int64      `json:"bytes,omitempty"`
	Checks      int        `json:"checks,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func NewReportRun(clientID, reportID, outputPath string) ReportRun {
	return ReportRun{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		ReportID:   reportID,
		Status:     RunStatusRunning,
		OutputPath: outputPath,
		StartedAt:  time.Now().UTC(),
	}
}

// WithJob records the remote job ID once the start-job stage succeeds.
func (r ReportRun) WithJob(jobID string) ReportRun {
	r.JobID = jobID
	return r
}

func (r ReportRun) WithCompleted(fileName string, bytes int64, checks int) ReportRun {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.FileName = fileName
	r.Bytes = bytes
	r.Checks = checks
	r.CompletedAt = &now
	return r
}

func (r ReportRun) WithTimedOut(checks int) ReportRun {
	now := time.Now().UTC()
	r.Status = RunStatusTimedOut
	r.Checks = checks
	r.CompletedAt = &now
	return r
}

func (r ReportRun) WithFailed(errMsg string, checks int) ReportRun {
	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.Checks = checks
	r.Error = errMsg
	r.CompletedAt = &now
	return r
}

// Terminal reports whether the run has reached a final status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusTimedOut, RunStatusFailed:
		return true
	default:
		return false
	}
}
