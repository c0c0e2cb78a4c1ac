package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/incontact"
	"github.com/cxops/incontact-adapter/pkg/model"
)

// defaultRunListLimit bounds run listings when the caller gives no limit.
const defaultRunListLimit = 20

// ReportService defines the fetch operation used by the handler.
type ReportService interface {
	StartFetch(req incontact.FetchRequest) string
}

// RunReader reads run history. The hybrid store satisfies this.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.ReportRun, error)
	ListRunsByReport(ctx context.Context, reportID string, limit int) ([]model.ReportRun, error)
}

// ClientValidator checks whether a client ID is configured and allowed.
type ClientValidator interface {
	IsKnownClient(ctx context.Context, clientID string) bool
}

// ReportHandler handles HTTP API requests for report fetch operations.
type ReportHandler struct {
	logger    *zap.Logger
	service   ReportService
	runs      RunReader
	validator ClientValidator
}

// NewReportHandler creates a new ReportHandler. runs may be nil when run
// history is disabled.
func NewReportHandler(logger *zap.Logger, service ReportService, runs RunReader, validator ClientValidator) *ReportHandler {
	return &ReportHandler{
		logger:    logger,
		service:   service,
		runs:      runs,
		validator: validator,
	}
}

// FetchReportHandler accepts a report fetch and starts it in the background.
func (h *ReportHandler) FetchReportHandler(c *fiber.Ctx) error {
	var req FetchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if h.validator != nil && !h.validator.IsKnownClient(c.Context(), req.ClientID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "unknown or unauthorized clientId"})
	}

	h.logger.Info("api.fetch_report",
		zap.String("client", req.ClientID),
		zap.String("report_id", req.ReportID))

	runID := h.service.StartFetch(incontact.FetchRequest{
		ClientID:   req.ClientID,
		ReportID:   req.ReportID,
		OutputPath: req.OutputPath,
	})

	return c.Status(fiber.StatusAccepted).JSON(FetchAcceptedResponse{
		Status:   "accepted",
		RunID:    runID,
		ClientID: req.ClientID,
		ReportID: req.ReportID,
	})
}

// GetRunHandler returns one run by ID.
func (h *ReportHandler) GetRunHandler(c *fiber.Ctx) error {
	if h.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "run history unavailable"})
	}

	runID := c.Params("runId")
	run, err := h.runs.GetRun(c.Context(), runID)
	if err != nil {
		h.logger.Error("api.get_run.failed",
			zap.String("run_id", runID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if run == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}

	return c.JSON(toRunResponse(*run))
}

// ListRunsHandler returns recent runs for one report, newest first.
func (h *ReportHandler) ListRunsHandler(c *fiber.Ctx) error {
	if h.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "run history unavailable"})
	}

	reportID := c.Params("reportId")
	limit := defaultRunListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}

	runs, err := h.runs.ListRunsByReport(c.Context(), reportID, limit)
	if err != nil {
		h.logger.Error("api.list_runs.failed",
			zap.String("report_id", reportID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	return c.JSON(RunListResponse{
		ReportID: reportID,
		Runs:     out,
		Count:    len(out),
	})
}
