package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical event/command envelope.
// All messages published to or consumed from NATS must follow this format.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	TenantID      string          `json:"tenant_id"`
	ClientID      string          `json:"client_id"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// ReportFetchCommand is the payload of cmd.report.fetch commands.
// OutputPath and ReportID override the resolved profile defaults when set.
type ReportFetchCommand struct {
	ClientID   string `json:"client_id"`
	ReportID   string `json:"report_id,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}
