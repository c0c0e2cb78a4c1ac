package incontact

import "context"

//
// ────────────────────────────────────────────────
//   Client Configuration (per-client profile)
// ────────────────────────────────────────────────
//

// InContactClientConfig holds per-client InContact Reporting API configuration.
// Profiles come from env ("default") or AWS Secrets Manager; secret format:
// {"app": "...", "vendor": "...", "business_unit": "...", "username": "...", "password": "..."}
type InContactClientConfig struct {
	ClientID     string // profile name, also the rate limit key
	App          string // application name registered with the venue
	Vendor       string // vendor name issued by the venue
	BusinessUnit string // business unit number
	Username     string // API account username
	Password     string // API account password
	AuthURL      string // authorization server token endpoint
	ReportID     string // default report definition ID, optional
	OutputPath   string // default output file path, optional
}

// ConfigResolver resolves per-client InContact configuration.
type ConfigResolver interface {
	// Resolve fetches the InContactClientConfig for a given client ID, using cache when available.
	Resolve(ctx context.Context, clientID string) (*InContactClientConfig, error)

	// DiscoverClients lists all client IDs that have InContact profiles configured.
	DiscoverClients(ctx context.Context) ([]string, error)
}

//
// ────────────────────────────────────────────────
//   Authorization Server Token Types
// ────────────────────────────────────────────────
//

// InContactTokenRequest is the password-grant payload for the authorization server.
type InContactTokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// InContactTokenResponse is the response from the authorization server.
// resource_server_base_uri roots every subsequent report-jobs request.
type InContactTokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int    `json:"expires_in"`
	ResourceServerBaseURI string `json:"resource_server_base_uri"`
}

//
// ────────────────────────────────────────────────
//   Reporting API: Start Job Request / Response
// ────────────────────────────────────────────────
//

// InContactStartJobRequest is the payload for POST {report-jobs}/{reportId}.
// The endpoint requires every parameter as a string, booleans included.
type InContactStartJobRequest struct {
	FileType       string `json:"fileType"`       // "CSV"
	IncludeHeaders string `json:"includeHeaders"` // "true" | "false"
	AppendDate     string `json:"appendDate"`     // "true" | "false"
	DeleteAfter    string `json:"deleteAfter"`    // days the venue keeps the file
	Overwrite      string `json:"overwrite"`      // "true" | "false"
}

// InContactStartJobResponse is the response from starting a report job.
type InContactStartJobResponse struct {
	JobID string `json:"jobId"`
}

//
// ────────────────────────────────────────────────
//   Reporting API: Job Status
// ────────────────────────────────────────────────
//

// InContactJobStatusResponse is the response from GET {report-jobs}/{jobId}.
type InContactJobStatusResponse struct {
	JobResult InContactJobResult `json:"jobResult"`
}

// InContactJobResult carries the job outcome. ResultFileURL stays empty
// until the report file is ready for download.
type InContactJobResult struct {
	ResultFileURL string `json:"resultFileURL"`
}

//
// ────────────────────────────────────────────────
//   Reporting API: File Download
// ────────────────────────────────────────────────
//

// InContactFilesResponse is the response from GET {resultFileURL}.
type InContactFilesResponse struct {
	Files InContactFile `json:"files"`
}

// InContactFile holds the finished report file.
type InContactFile struct {
	File     string `json:"file"` // base64-encoded report payload
	FileName string `json:"fileName,omitempty"`
}

//
// ────────────────────────────────────────────────
//   Reporting API: Error Response
// ────────────────────────────────────────────────
//

// InContactErrorResponse represents an error response from the InContact API.
type InContactErrorResponse struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	Message          string `json:"message,omitempty"`
}
