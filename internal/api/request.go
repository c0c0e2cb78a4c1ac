package api

// FetchCreateRequest is the payload for starting a report fetch.
type FetchCreateRequest struct {
	ClientID   string `json:"clientId"`
	ReportID   string `json:"reportId"`
	OutputPath string `json:"outputPath"`
}
