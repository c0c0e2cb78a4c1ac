package schedule

import (
	"fmt"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cxops/incontact-adapter/internal/incontact"
)

// Entry is one recurring fetch: a cron spec plus the client and report it
// targets. ReportID may be empty, the client profile default then applies.
type Entry struct {
	Spec     string
	ClientID string
	ReportID string
}

// ParseSchedules parses the FETCH_SCHEDULES setting: ";"-separated entries of
// the form "cron spec|clientID|reportID", reportID optional. An empty input
// yields no entries.
func ParseSchedules(raw string) ([]Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var entries []Entry
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, "|")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("schedule entry %q: want \"cron spec|clientID[|reportID]\"", item)
		}
		entry := Entry{
			Spec:     strings.TrimSpace(parts[0]),
			ClientID: strings.TrimSpace(parts[1]),
		}
		if len(parts) == 3 {
			entry.ReportID = strings.TrimSpace(parts[2])
		}
		if entry.Spec == "" {
			return nil, fmt.Errorf("schedule entry %q: empty cron spec", item)
		}
		if entry.ClientID == "" {
			return nil, fmt.Errorf("schedule entry %q: empty client id", item)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Fetcher launches report fetches. *incontact.Service satisfies this.
type Fetcher interface {
	StartFetch(req incontact.FetchRequest) string
}

// CronScheduler fires recurring report fetches on cron schedules.
type CronScheduler struct {
	logger  *zap.Logger
	fetcher Fetcher
	entries []Entry

	mu   sync.Mutex
	cron *cron.Cron
}

// NewCronScheduler creates a scheduler over the given entries. Specs use the
// standard 5-field cron format; "@every 30m" style descriptors also work.
func NewCronScheduler(logger *zap.Logger, fetcher Fetcher, entries []Entry) *CronScheduler {
	return &CronScheduler{
		logger:  logger,
		fetcher: fetcher,
		entries: entries,
		cron:    cron.New(),
	}
}

// Start registers every entry and starts the cron loop. A single invalid
// spec fails the whole start.
func (s *CronScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		entry := entry
		_, err := s.cron.AddFunc(entry.Spec, func() {
			runID := s.fetcher.StartFetch(incontact.FetchRequest{
				ClientID: entry.ClientID,
				ReportID: entry.ReportID,
			})
			s.logger.Info("schedule.fetch_triggered",
				zap.String("run_id", runID),
				zap.String("client", entry.ClientID),
				zap.String("report_id", entry.ReportID),
				zap.String("spec", entry.Spec))
		})
		if err != nil {
			return fmt.Errorf("schedule %q for client %q: %w", entry.Spec, entry.ClientID, err)
		}
	}

	s.cron.Start()
	s.logger.Info("schedule.started", zap.Int("entries", len(s.entries)))
	return nil
}

// Stop halts the cron loop and waits for in-flight triggers to return.
func (s *CronScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("schedule.stopped")
}
