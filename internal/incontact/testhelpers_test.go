package incontact

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/pkg/config"
)

// writeJSON encodes v as JSON into w.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}

// b64 encodes s the way the venue encodes report payloads.
func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// mockConfigResolver implements ConfigResolver for tests.
type mockConfigResolver struct {
	cfg     *InContactClientConfig
	err     error
	clients []string
}

func (m *mockConfigResolver) Resolve(_ context.Context, _ string) (*InContactClientConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.cfg, nil
}

func (m *mockConfigResolver) DiscoverClients(_ context.Context) ([]string, error) {
	return m.clients, m.err
}

// testClientConfig returns a client profile pointing at the mock server.
func testClientConfig(serverURL string) *InContactClientConfig {
	return &InContactClientConfig{
		ClientID:     "test-client-id",
		App:          "test-app",
		Vendor:       "test-vendor",
		BusinessUnit: "4599",
		Username:     "svc-user",
		Password:     "svc-pass",
		AuthURL:      serverURL + "/token",
	}
}

// seedSession pre-populates the session cache so tests don't hit the auth server.
func seedSession(m *SessionManager, clientID, baseURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[clientID] = sessionEntry{
		session: Session{
			AccessToken:   "test-access-token",
			ReportJobsURL: baseURL + "/" + reportJobsPath,
		},
		expiresAt: time.Now().Add(24 * time.Hour),
	}
}

// venueServer is an httptest double for the InContact auth and reporting
// endpoints. The status endpoint walks statusSeq one entry per call, where
// each entry is a file URL path ("" means not ready) and the final entry
// repeats. Nil startResp or filesResp make that endpoint answer with a venue
// error status. Counters record per-endpoint traffic.
type venueServer struct {
	srv *httptest.Server

	startResp *InContactStartJobResponse
	statusSeq []string
	filesResp *InContactFilesResponse

	authCalls     atomic.Int32
	startCalls    atomic.Int32
	statusCalls   atomic.Int32
	downloadCalls atomic.Int32

	mu            sync.Mutex
	lastStartPath string
}

func newVenueServer(
	t *testing.T,
	startResp *InContactStartJobResponse,
	statusSeq []string,
	filesResp *InContactFilesResponse,
) *venueServer {
	t.Helper()
	v := &venueServer{
		startResp: startResp,
		statusSeq: statusSeq,
		filesResp: filesResp,
	}
	v.srv = httptest.NewServer(http.HandlerFunc(v.handle))
	return v
}

func (v *venueServer) URL() string { return v.srv.URL }
func (v *venueServer) Close()      { v.srv.Close() }

func (v *venueServer) startPath() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastStartPath
}

func (v *venueServer) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && path == "/token":
		v.authCalls.Add(1)
		w.WriteHeader(http.StatusOK)
		writeJSON(w, InContactTokenResponse{
			AccessToken:           "test-access-token",
			TokenType:             "bearer",
			ExpiresIn:             3600,
			ResourceServerBaseURI: "http://" + r.Host + "/",
		})

	case r.Method == http.MethodPost && strings.HasPrefix(path, "/services/v13.0/report-jobs/"):
		v.startCalls.Add(1)
		v.mu.Lock()
		v.lastStartPath = path
		v.mu.Unlock()
		if v.startResp == nil {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, InContactErrorResponse{Error: "invalid_request", ErrorDescription: "report job rejected"})
			return
		}
		w.WriteHeader(http.StatusOK)
		writeJSON(w, v.startResp)

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/services/v13.0/report-jobs/"):
		n := int(v.statusCalls.Add(1)) - 1
		if len(v.statusSeq) == 0 {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, InContactErrorResponse{Error: "not_found", ErrorDescription: "job not found"})
			return
		}
		if n >= len(v.statusSeq) {
			n = len(v.statusSeq) - 1
		}
		fileURL := v.statusSeq[n]
		if fileURL != "" {
			fileURL = "http://" + r.Host + fileURL
		}
		w.WriteHeader(http.StatusOK)
		writeJSON(w, InContactJobStatusResponse{JobResult: InContactJobResult{ResultFileURL: fileURL}})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/files/"):
		v.downloadCalls.Add(1)
		if v.filesResp == nil {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, InContactErrorResponse{Error: "not_found", ErrorDescription: "file not found"})
			return
		}
		w.WriteHeader(http.StatusOK)
		writeJSON(w, v.filesResp)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// newTestClient returns a Client whose session cache is pre-seeded against
// the given venue server, so no auth traffic occurs.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	logger := zap.NewNop()
	sessions := NewSessionManager(logger, nil)
	seedSession(sessions, "test-client-id", serverURL)
	return NewClient(logger, nil, sessions, 0)
}

// newTestService returns a Service wired to the given mock server URL with a
// fast poll cadence. Publisher, store and sync writer are nil; tests that
// need them set the fields directly.
func newTestService(t *testing.T, serverURL string, maxChecks int) *Service {
	t.Helper()
	logger := zap.NewNop()

	client := newTestClient(t, serverURL)
	poller := NewPoller(logger, client, time.Millisecond, maxChecks)

	resolver := &mockConfigResolver{
		cfg:     testClientConfig(serverURL),
		clients: []string{"test-client-id"},
	}

	return &Service{
		ctx:            context.Background(),
		cfg:            &config.Config{},
		logger:         logger,
		client:         client,
		poller:         poller,
		configResolver: resolver,
		publisher:      nil,
		mapper:         NewMapper(),
	}
}

// fakeClock advances a synthetic time on Sleep instead of blocking.
type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	sleeps   []time.Duration
	sleepErr error
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		c.now = time.Unix(1700000000, 0)
	}
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sleepErr != nil {
		return c.sleepErr
	}
	if c.now.IsZero() {
		c.now = time.Unix(1700000000, 0)
	}
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}
