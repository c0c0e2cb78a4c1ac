package incontact

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cxops/incontact-adapter/pkg/model"
)

// Mapper converts venue payloads and run records into the shapes the rest of
// the adapter speaks: decoded file bytes, lifecycle events, event subjects.
type Mapper struct{}

func NewMapper() *Mapper {
	return &Mapper{}
}

// payloadSanitizer strips the line breaks some venues wrap base64 payloads in.
var payloadSanitizer = strings.NewReplacer("\n", "", "\r", "")

// DecodeReportPayload decodes the base64 files.file payload of a download
// response into the raw report bytes.
func (m *Mapper) DecodeReportPayload(resp *InContactFilesResponse) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payloadSanitizer.Replace(resp.Files.File))
	if err != nil {
		return nil, fmt.Errorf("decode report payload: %w", err)
	}
	return data, nil
}

// ResolveOutputPath picks the output file path for a run: an explicit request
// path wins, then the profile default, then "{reportID}.csv".
func (m *Mapper) ResolveOutputPath(requestPath, profilePath, reportID string) string {
	if requestPath != "" {
		return requestPath
	}
	if profilePath != "" {
		return profilePath
	}
	return reportID + ".csv"
}

// RunEvent builds the lifecycle event payload for a run.
func (m *Mapper) RunEvent(run model.ReportRun) model.ReportRunEvent {
	return model.ReportRunEvent{
		ClientID:  run.ClientID,
		RunID:     run.ID,
		ReportID:  run.ReportID,
		JobID:     run.JobID,
		Status:    string(run.Status),
		FileName:  run.FileName,
		Bytes:     run.Bytes,
		Checks:    run.Checks,
		Error:     run.Error,
		Timestamp: time.Now().UTC(),
	}
}

// RunEventType builds the versioned event type for a run status,
// e.g. "evt.report.completed.v1.INCONTACT".
func (m *Mapper) RunEventType(status model.RunStatus) string {
	return "evt.report." + strings.ToLower(string(status)) + ".v1.INCONTACT"
}
