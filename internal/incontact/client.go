package incontact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/httpclient"
	"github.com/cxops/incontact-adapter/internal/metrics"
	"github.com/cxops/incontact-adapter/internal/rate"
)

// Client talks to the InContact Reporting API on behalf of resolved client
// profiles. Authentication is delegated to the SessionManager; every
// resource-server request carries the session's bearer token.
type Client struct {
	logger   *zap.Logger
	exec     *httpclient.Executor
	sessions *SessionManager
}

// NewClient creates an InContact API client. retryMax is handed to the HTTP
// executor; the production default of 0 keeps every non-2xx response fatal
// for the calling run.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, sessions *SessionManager, retryMax int) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	errorHandler := func(status int, body []byte) error {
		var venueErr InContactErrorResponse
		if err := json.Unmarshal(body, &venueErr); err == nil && venueErr.ErrorDescription != "" {
			logger.Warn("incontact.client_error",
				zap.Int("status", status),
				zap.String("error", venueErr.Error),
				zap.String("description", venueErr.ErrorDescription))
			return fmt.Errorf("incontact returned %d: %s", status, venueErr.ErrorDescription)
		}
		logger.Warn("incontact.client_error",
			zap.Int("status", status),
			zap.ByteString("body", body))
		return fmt.Errorf("incontact returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	return &Client{
		logger:   logger,
		exec:     httpclient.New(logger, rateMgr, httpClient, retryMax, "incontact", errorHandler),
		sessions: sessions,
	}
}

// setHeaders applies the resource-server headers. The venue insists on the
// lowercase "bearer" scheme.
func setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("Content-Type", "application/json")
}

// StartReportJob starts a report job for the given report definition and
// returns the venue's job ID.
// POST {reportJobsURL}{reportID}
func (c *Client) StartReportJob(ctx context.Context, cfg *InContactClientConfig, reportID string) (string, error) {
	sess, err := c.sessions.GetSession(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}

	payload := InContactStartJobRequest{
		FileType:       "CSV",
		IncludeHeaders: "true",
		AppendDate:     "true",
		DeleteAfter:    "7",
		Overwrite:      "true",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal start job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sess.ReportJobsURL+reportID, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build start job request: %w", err)
	}
	setHeaders(req, sess.AccessToken)

	var out InContactStartJobResponse
	start := time.Now()
	err = c.exec.DoJSON(ctx, req, cfg.ClientID, &out)
	metrics.ObserveDuration(metrics.InContactRequestDuration, start, "start_job", http.MethodPost)
	if err != nil {
		metrics.IncInContactRequest("start_job", http.MethodPost, "error")
		return "", fmt.Errorf("start report job %q: %w", reportID, err)
	}
	if out.JobID == "" {
		metrics.IncInContactRequest("start_job", http.MethodPost, "error")
		return "", fmt.Errorf("start report job %q: empty jobId in response", reportID)
	}
	metrics.IncInContactRequest("start_job", http.MethodPost, "ok")

	c.logger.Debug("incontact.report_job_started",
		zap.String("client", cfg.ClientID),
		zap.String("report_id", reportID),
		zap.String("job_id", out.JobID))
	return out.JobID, nil
}

// GetJobResult returns the current result state of a report job. An empty
// resultFileURL in a 2xx response means the job is still running.
// GET {reportJobsURL}{jobID}
func (c *Client) GetJobResult(ctx context.Context, cfg *InContactClientConfig, jobID string) (*InContactJobStatusResponse, error) {
	sess, err := c.sessions.GetSession(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sess.ReportJobsURL+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("build job status request: %w", err)
	}
	setHeaders(req, sess.AccessToken)

	var out InContactJobStatusResponse
	start := time.Now()
	err = c.exec.DoJSON(ctx, req, cfg.ClientID, &out)
	metrics.ObserveDuration(metrics.InContactRequestDuration, start, "job_status", http.MethodGet)
	if err != nil {
		metrics.IncInContactRequest("job_status", http.MethodGet, "error")
		return nil, fmt.Errorf("job %q status: %w", jobID, err)
	}
	metrics.IncInContactRequest("job_status", http.MethodGet, "ok")
	return &out, nil
}

// DownloadFile fetches a finished report file from the absolute URL the
// status endpoint announced. The payload arrives base64-encoded in files.file.
// GET {resultFileURL}
func (c *Client) DownloadFile(ctx context.Context, cfg *InContactClientConfig, fileURL string) (*InContactFilesResponse, error) {
	sess, err := c.sessions.GetSession(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	setHeaders(req, sess.AccessToken)

	var out InContactFilesResponse
	start := time.Now()
	err = c.exec.DoJSON(ctx, req, cfg.ClientID, &out)
	metrics.ObserveDuration(metrics.InContactRequestDuration, start, "download", http.MethodGet)
	if err != nil {
		metrics.IncInContactRequest("download", http.MethodGet, "error")
		return nil, fmt.Errorf("download report file: %w", err)
	}
	metrics.IncInContactRequest("download", http.MethodGet, "ok")
	return &out, nil
}
