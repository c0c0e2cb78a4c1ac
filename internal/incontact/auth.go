package incontact

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// reportJobsPath is appended to the resource server base URI announced
	// by the authorization server.
	reportJobsPath = "services/v13.0/report-jobs/"

	// sessionExpiryBuffer refreshes sessions slightly before they expire.
	sessionExpiryBuffer = 5 * time.Minute

	// defaultSessionTTL applies when the token response carries no expires_in.
	defaultSessionTTL = time.Hour
)

// EncodeAuthCode returns the base64 encoding of "app@vendor:businessUnit",
// the identity the authorization server expects in its basic Authorization
// header. The exact composition is load-bearing; changing it locks every
// caller out.
func EncodeAuthCode(app, vendor, businessUnit string) string {
	return base64.StdEncoding.EncodeToString([]byte(app + "@" + vendor + ":" + businessUnit))
}

// reportJobsURL joins the resource server base URI with the report-jobs path.
func reportJobsURL(baseURI string) string {
	if !strings.HasSuffix(baseURI, "/") {
		baseURI += "/"
	}
	return baseURI + reportJobsPath
}

// Session is an authenticated InContact session: the bearer token plus the
// report-jobs URL rooted at the caller's resource server.
type Session struct {
	AccessToken   string
	ReportJobsURL string
}

type sessionEntry struct {
	session   Session
	expiresAt time.Time
}

// SessionManager authenticates against the InContact authorization server
// and caches sessions per client profile.
type SessionManager struct {
	logger *zap.Logger
	client *http.Client

	mu    sync.Mutex
	cache map[string]sessionEntry
}

// NewSessionManager creates a session manager. A nil httpClient falls back
// to a 30s-timeout default.
func NewSessionManager(logger *zap.Logger, httpClient *http.Client) *SessionManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SessionManager{
		logger: logger,
		client: httpClient,
		cache:  make(map[string]sessionEntry),
	}
}

// GetSession returns a valid session for the client profile, authenticating
// when no cached session exists or the cached one is about to expire.
func (m *SessionManager) GetSession(ctx context.Context, cfg *InContactClientConfig) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.cache[cfg.ClientID]; ok && time.Now().Before(entry.expiresAt.Add(-sessionExpiryBuffer)) {
		return entry.session, nil
	}

	entry, err := m.fetchSession(ctx, cfg)
	if err != nil {
		return Session{}, fmt.Errorf("fetch session: %w", err)
	}
	m.cache[cfg.ClientID] = entry

	m.logger.Info("incontact.auth.session_refreshed",
		zap.String("client", cfg.ClientID),
		zap.Time("expires_at", entry.expiresAt))
	return entry.session, nil
}

// fetchSession performs the password-grant token request.
func (m *SessionManager) fetchSession(ctx context.Context, cfg *InContactClientConfig) (sessionEntry, error) {
	payload := InContactTokenRequest{
		GrantType: "password",
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return sessionEntry{}, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return sessionEntry{}, fmt.Errorf("build token request: %w", err)
	}
	// The venue insists on the lowercase "basic" scheme.
	req.Header.Set("Authorization", "basic "+EncodeAuthCode(cfg.App, cfg.Vendor, cfg.BusinessUnit))
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return sessionEntry{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return sessionEntry{}, fmt.Errorf("auth server returned %d", resp.StatusCode)
	}

	var tok InContactTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return sessionEntry{}, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return sessionEntry{}, fmt.Errorf("auth server returned empty access_token")
	}
	if tok.ResourceServerBaseURI == "" {
		return sessionEntry{}, fmt.Errorf("auth server returned empty resource_server_base_uri")
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if tok.ExpiresIn <= 0 {
		ttl = defaultSessionTTL
	}

	return sessionEntry{
		session: Session{
			AccessToken:   tok.AccessToken,
			ReportJobsURL: reportJobsURL(tok.ResourceServerBaseURI),
		},
		expiresAt: time.Now().Add(ttl),
	}, nil
}
