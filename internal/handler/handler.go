package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/incontact"
	"github.com/cxops/incontact-adapter/internal/metrics"
	"github.com/cxops/incontact-adapter/internal/store"
	"github.com/cxops/incontact-adapter/pkg/model"
)

// queueGroup makes every adapter instance share one work queue, so a fetch
// command is handled by exactly one instance.
const queueGroup = "incontact-adapter-workers"

// dedupeTTL bounds how long a handled correlation id suppresses replays.
const dedupeTTL = 24 * time.Hour

// Handler consumes NATS commands for the InContact adapter and delegates
// processing to the report service layer.
type Handler struct {
	ctx     context.Context
	logger  *zap.Logger
	nc      *nats.Conn
	service *incontact.Service
	store   store.Store
	subject string
}

// NewHandler constructs a new Handler with its dependencies. store may be
// nil; command deduplication is then disabled.
func NewHandler(
	ctx context.Context,
	logger *zap.Logger,
	nc *nats.Conn,
	service *incontact.Service,
	st store.Store,
	subject string,
) *Handler {
	return &Handler{
		ctx:     ctx,
		logger:  logger,
		nc:      nc,
		service: service,
		store:   st,
		subject: subject,
	}
}

// Start subscribes to the command subject and begins processing messages.
func (h *Handler) Start() error {
	if _, err := h.nc.QueueSubscribe(h.subject, queueGroup, h.handleMessage); err != nil {
		return fmt.Errorf("subscribe %s: %w", h.subject, err)
	}
	h.logger.Info("subscribed to NATS subject", zap.String("subject", h.subject))
	return nil
}

// handleMessage routes a message to the correct command handler.
func (h *Handler) handleMessage(msg *nats.Msg) {
	start := time.Now()

	var env model.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		h.logger.Warn("invalid envelope", zap.Error(err))
		metrics.IncError("handler", "bad_envelope")
		return
	}

	switch env.EventType {
	case h.subject:
		h.onReportFetch(env)
	default:
		h.logger.Warn("unknown event type", zap.String("event_type", env.EventType))
	}

	h.logger.Debug("message handled",
		zap.String("event_type", env.EventType),
		zap.Duration("latency", time.Since(start)),
	)
}

// onReportFetch handles one report fetch command. The pipeline runs in its
// own goroutine with a deadline derived from the poll budget, so a slow
// venue never stalls the command queue.
func (h *Handler) onReportFetch(env model.Envelope) {
	if h.seenBefore(env) {
		h.logger.Info("duplicate command ignored",
			zap.String("correlation_id", env.CorrelationID.String()))
		return
	}

	var cmd model.ReportFetchCommand
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		h.logger.Warn("invalid report fetch payload", zap.Error(err))
		metrics.IncError("handler", "bad_payload")
		return
	}
	if cmd.ClientID == "" {
		cmd.ClientID = env.ClientID
	}
	if cmd.ClientID == "" {
		h.logger.Warn("report fetch command without client id",
			zap.String("correlation_id", env.CorrelationID.String()))
		metrics.IncError("handler", "no_client")
		return
	}

	h.logger.Info("processing report fetch",
		zap.String("tenant_id", env.TenantID),
		zap.String("client_id", cmd.ClientID),
		zap.String("report_id", cmd.ReportID),
	)

	go func() {
		ctx, cancel := context.WithTimeout(h.ctx, h.commandTimeout())
		defer cancel()

		if _, err := h.service.FetchReport(ctx, incontact.FetchRequest{
			ClientID:   cmd.ClientID,
			ReportID:   cmd.ReportID,
			OutputPath: cmd.OutputPath,
		}); err != nil {
			h.logger.Error("report fetch command failed",
				zap.String("client_id", cmd.ClientID),
				zap.String("correlation_id", env.CorrelationID.String()),
				zap.Error(err))
		}
	}()
}

// commandTimeout derives the per-command deadline from the poll budget plus
// headroom for the auth, start and download stages.
func (h *Handler) commandTimeout() time.Duration {
	cfg := h.service.Config()
	budget := cfg.PollInterval * time.Duration(cfg.MaxStatusChecks)
	if budget <= 0 {
		budget = 10 * time.Minute
	}
	return budget + 2*time.Minute
}

// seenBefore marks the envelope's correlation id as handled and reports
// whether it already was. Without a store every command is considered new.
func (h *Handler) seenBefore(env model.Envelope) bool {
	if h.store == nil {
		return false
	}
	key := "cmd:" + env.CorrelationID.String()

	var handled bool
	if err := h.store.GetJSON(h.ctx, key, &handled); err == nil {
		return true
	}
	if err := h.store.SetJSON(h.ctx, key, true, dedupeTTL); err != nil {
		h.logger.Warn("command dedupe mark failed", zap.Error(err))
	}
	return false
}
