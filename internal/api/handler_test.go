package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/incontact"
	"github.com/cxops/incontact-adapter/pkg/model"
)

// ─── Mock service ─────────────────────────────────────────────────────────────

type mockReportService struct {
	mu   sync.Mutex
	reqs []incontact.FetchRequest
}

func (m *mockReportService) StartFetch(req incontact.FetchRequest) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return fmt.Sprintf("run-%03d", len(m.reqs))
}

func (m *mockReportService) requests() []incontact.FetchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]incontact.FetchRequest(nil), m.reqs...)
}

// ─── Mock run reader ──────────────────────────────────────────────────────────

type mockRunReader struct {
	getFn  func(ctx context.Context, runID string) (*model.ReportRun, error)
	listFn func(ctx context.Context, reportID string, limit int) ([]model.ReportRun, error)
}

func (m *mockRunReader) GetRun(ctx context.Context, runID string) (*model.ReportRun, error) {
	if m.getFn != nil {
		return m.getFn(ctx, runID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockRunReader) ListRunsByReport(ctx context.Context, reportID string, limit int) ([]model.ReportRun, error) {
	if m.listFn != nil {
		return m.listFn(ctx, reportID, limit)
	}
	return nil, fmt.Errorf("not implemented")
}

// ─── Mock validator ───────────────────────────────────────────────────────────

type mockClientValidator struct {
	known map[string]bool
}

func (m *mockClientValidator) IsKnownClient(_ context.Context, clientID string) bool {
	return m.known[clientID]
}

// ─── Test app helpers ─────────────────────────────────────────────────────────

func newTestApp(svc ReportService, runs RunReader, validator ClientValidator) *fiber.App {
	app := fiber.New()
	handler := NewReportHandler(zap.NewNop(), svc, runs, validator)
	v1 := app.Group("/api/v1")
	v1.Post("/reports/fetch", handler.FetchReportHandler)
	v1.Get("/reports/:reportId/runs", handler.ListRunsHandler)
	v1.Get("/runs/:runId", handler.GetRunHandler)
	return app
}

func completedRun() model.ReportRun {
	completed := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	return model.ReportRun{
		ID:          "run-001",
		ClientID:    "client-001",
		ReportID:    "7711",
		JobID:       "job-42",
		Status:      model.RunStatusCompleted,
		OutputPath:  "/var/reports/acme.csv",
		FileName:    "report.csv",
		Bytes:       2048,
		Checks:      3,
		StartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CompletedAt: &completed,
	}
}

// ─── FetchReportHandler ───────────────────────────────────────────────────────

func TestFetchReportHandler_Accepted(t *testing.T) {
	svc := &mockReportService{}
	app := newTestApp(svc, nil, nil)

	body := `{
		"clientId":   "client-001",
		"reportId":   "7711",
		"outputPath": "/var/reports/acme.csv"
	}`
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/reports/fetch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var result FetchAcceptedResponse
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "accepted", result.Status)
	assert.Equal(t, "run-001", result.RunID)
	assert.Equal(t, "client-001", result.ClientID)
	assert.Equal(t, "7711", result.ReportID)

	reqs := svc.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "client-001", reqs[0].ClientID)
	assert.Equal(t, "7711", reqs[0].ReportID)
	assert.Equal(t, "/var/reports/acme.csv", reqs[0].OutputPath)
}

func TestFetchReportHandler_InvalidJSON(t *testing.T) {
	svc := &mockReportService{}
	app := newTestApp(svc, nil, nil)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/reports/fetch", strings.NewReader("{invalid"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, svc.requests())
}

func TestFetchReportHandler_MissingClientID(t *testing.T) {
	svc := &mockReportService{}
	app := newTestApp(svc, nil, nil)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/reports/fetch", strings.NewReader(`{"reportId":"7711"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "clientId is required")
	assert.Empty(t, svc.requests())
}

func TestFetchReportHandler_UnknownClient(t *testing.T) {
	svc := &mockReportService{}
	validator := &mockClientValidator{known: map[string]bool{"client-001": true}}
	app := newTestApp(svc, nil, validator)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/reports/fetch",
		strings.NewReader(`{"clientId":"client-999","reportId":"7711"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Empty(t, svc.requests())
}

func TestFetchReportHandler_KnownClient(t *testing.T) {
	svc := &mockReportService{}
	validator := &mockClientValidator{known: map[string]bool{"client-001": true}}
	app := newTestApp(svc, nil, validator)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/reports/fetch",
		strings.NewReader(`{"clientId":"client-001"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Len(t, svc.requests(), 1)
}

// ─── GetRunHandler ────────────────────────────────────────────────────────────

func TestGetRunHandler_Found(t *testing.T) {
	run := completedRun()
	runs := &mockRunReader{
		getFn: func(_ context.Context, runID string) (*model.ReportRun, error) {
			assert.Equal(t, "run-001", runID)
			return &run, nil
		},
	}
	app := newTestApp(&mockReportService{}, runs, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/runs/run-001", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result RunResponse
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "run-001", result.RunID)
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "job-42", result.JobID)
	assert.Equal(t, "report.csv", result.FileName)
	assert.EqualValues(t, 2048, result.Bytes)
	assert.Equal(t, 3, result.Checks)
	require.NotNil(t, result.CompletedAt)
}

func TestGetRunHandler_NotFound(t *testing.T) {
	runs := &mockRunReader{
		getFn: func(context.Context, string) (*model.ReportRun, error) {
			return nil, nil
		},
	}
	app := newTestApp(&mockReportService{}, runs, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/runs/run-missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetRunHandler_StoreError(t *testing.T) {
	runs := &mockRunReader{
		getFn: func(context.Context, string) (*model.ReportRun, error) {
			return nil, errors.New("redis down")
		},
	}
	app := newTestApp(&mockReportService{}, runs, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/runs/run-001", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestGetRunHandler_HistoryUnavailable(t *testing.T) {
	app := newTestApp(&mockReportService{}, nil, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/runs/run-001", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

// ─── ListRunsHandler ──────────────────────────────────────────────────────────

func TestListRunsHandler(t *testing.T) {
	first := completedRun()
	second := completedRun()
	second.ID = "run-002"
	second.Status = model.RunStatusFailed

	runs := &mockRunReader{
		listFn: func(_ context.Context, reportID string, limit int) ([]model.ReportRun, error) {
			assert.Equal(t, "7711", reportID)
			assert.Equal(t, defaultRunListLimit, limit)
			return []model.ReportRun{second, first}, nil
		},
	}
	app := newTestApp(&mockReportService{}, runs, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/reports/7711/runs", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result RunListResponse
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "7711", result.ReportID)
	assert.Equal(t, 2, result.Count)
	require.Len(t, result.Runs, 2)
	assert.Equal(t, "run-002", result.Runs[0].RunID)
	assert.Equal(t, "failed", result.Runs[0].Status)
}

func TestListRunsHandler_CustomLimit(t *testing.T) {
	var gotLimit int
	runs := &mockRunReader{
		listFn: func(_ context.Context, _ string, limit int) ([]model.ReportRun, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	app := newTestApp(&mockReportService{}, runs, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/reports/7711/runs?limit=5", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, gotLimit)
}

func TestListRunsHandler_BadLimit(t *testing.T) {
	app := newTestApp(&mockReportService{}, &mockRunReader{}, nil)

	for _, limit := range []string{"abc", "-1", "0"} {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/reports/7711/runs?limit="+limit, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
	}
}

func TestListRunsHandler_StoreError(t *testing.T) {
	runs := &mockRunReader{
		listFn: func(context.Context, string, int) ([]model.ReportRun, error) {
			return nil, errors.New("pg down")
		},
	}
	app := newTestApp(&mockReportService{}, runs, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/reports/7711/runs", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

// ─── Routes ───────────────────────────────────────────────────────────────────

func TestHealth_DegradedWithoutNATS(t *testing.T) {
	app := fiber.New()
	handler := NewReportHandler(zap.NewNop(), &mockReportService{}, nil, nil)
	RegisterRoutes(app, nil, nil, handler)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "disconnected", body.Checks["nats"])
	assert.Equal(t, "disabled", body.Checks["store"])
}

func TestMetricsRoute(t *testing.T) {
	app := fiber.New()
	handler := NewReportHandler(zap.NewNop(), &mockReportService{}, nil, nil)
	RegisterRoutes(app, nil, nil, handler)

	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "go_goroutines")
}
