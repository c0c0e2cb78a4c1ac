package model

import "time"

type ReportRunEvent struct {
	TenantID  string    `json:"tenant_id"`
	ClientID  string    `json:"client_id"`
	RunID     string    `json:"run_id"`
	ReportID  string    `json:"report_id"`
	JobID     string    `json:"job_id,omitempty"`
	Status    string    `json:"status"`
	FileName  string    `json:"file_name,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	Checks    int       `json:"checks,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
