package incontact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestPoller wires a poller with a fake clock against the venue server.
func newTestPoller(t *testing.T, serverURL string, maxChecks int) (*Poller, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	p := NewPoller(zap.NewNop(), newTestClient(t, serverURL), time.Second, maxChecks)
	p.clock = clock
	return p, clock
}

// ─── WaitForFile ──────────────────────────────────────────────────────────────

func TestWaitForFile_ReadyOnFirstCheck(t *testing.T) {
	v := newVenueServer(t, nil, []string{"/files/r1.csv"}, nil)
	defer v.Close()

	p, clock := newTestPoller(t, v.URL(), 5)

	result, err := p.WaitForFile(context.Background(), testClientConfig(v.URL()), "job-1")
	require.NoError(t, err)
	assert.Equal(t, PollReady, result.Outcome)
	assert.Equal(t, v.URL()+"/files/r1.csv", result.FileURL)
	assert.Equal(t, 1, result.Checks)
	assert.Equal(t, 0, clock.sleepCount(), "ready on first check, no waiting")
	assert.EqualValues(t, 1, v.statusCalls.Load())
}

func TestWaitForFile_ReadyOnThirdCheck(t *testing.T) {
	v := newVenueServer(t, nil, []string{"", "", "/files/r1.csv"}, nil)
	defer v.Close()

	p, clock := newTestPoller(t, v.URL(), 5)

	result, err := p.WaitForFile(context.Background(), testClientConfig(v.URL()), "job-1")
	require.NoError(t, err)
	assert.Equal(t, PollReady, result.Outcome)
	assert.Equal(t, 3, result.Checks)
	assert.Equal(t, 2, clock.sleepCount(), "one sleep between each pair of checks")
	assert.Equal(t, 2*time.Second, result.Elapsed)
	assert.EqualValues(t, 3, v.statusCalls.Load())
}

func TestWaitForFile_BudgetExhausted(t *testing.T) {
	v := newVenueServer(t, nil, []string{""}, nil)
	defer v.Close()

	p, clock := newTestPoller(t, v.URL(), 4)

	result, err := p.WaitForFile(context.Background(), testClientConfig(v.URL()), "job-1")
	require.NoError(t, err, "budget exhaustion is an outcome, not an error")
	assert.Equal(t, PollTimedOut, result.Outcome)
	assert.Empty(t, result.FileURL)
	assert.Equal(t, 4, result.Checks)
	assert.Equal(t, 3, clock.sleepCount(), "no sleep after the final check")
	assert.EqualValues(t, 4, v.statusCalls.Load())
}

func TestWaitForFile_StatusErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, clock := newTestPoller(t, srv.URL, 5)

	result, err := p.WaitForFile(context.Background(), testClientConfig(srv.URL), "job-1")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "status check 1/5")
	assert.Equal(t, 0, clock.sleepCount())
}

func TestWaitForFile_SleepErrorAborts(t *testing.T) {
	v := newVenueServer(t, nil, []string{""}, nil)
	defer v.Close()

	p, clock := newTestPoller(t, v.URL(), 3)
	clock.sleepErr = errors.New("interrupted")

	result, err := p.WaitForFile(context.Background(), testClientConfig(v.URL()), "job-1")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "wait between status checks")
	assert.EqualValues(t, 1, v.statusCalls.Load(), "abort before the second check")
}

func TestWaitForFile_ContextCancelDuringSleep(t *testing.T) {
	v := newVenueServer(t, nil, []string{""}, nil)
	defer v.Close()

	// real clock so the sleep actually selects on ctx
	p := NewPoller(zap.NewNop(), newTestClient(t, v.URL()), 10*time.Second, 2)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	var err error
	go func() {
		_, err = p.WaitForFile(ctx, testClientConfig(v.URL()), "job-1")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForFile did not return after context cancellation")
	}
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// ─── Defaults ─────────────────────────────────────────────────────────────────

func TestNewPoller_Defaults(t *testing.T) {
	p := NewPoller(zap.NewNop(), nil, 0, 0)
	assert.Equal(t, defaultPollInterval, p.interval)
	assert.Equal(t, defaultMaxChecks, p.maxChecks)

	p = NewPoller(zap.NewNop(), nil, -time.Second, -3)
	assert.Equal(t, defaultPollInterval, p.interval)
	assert.Equal(t, defaultMaxChecks, p.maxChecks)

	p = NewPoller(zap.NewNop(), nil, 5*time.Second, 7)
	assert.Equal(t, 5*time.Second, p.interval)
	assert.Equal(t, 7, p.maxChecks)
}
