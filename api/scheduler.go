/*
scheduler.go - Stale check-in monitor

PURPOSE:
  Periodically looks for staff-days from previous days that were opened
  and never closed, and reports them so an operator can correct them via
  PUT /api/admin/records. Nothing is closed automatically: a missing
  check-out has no trustworthy time to pay against.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Looks back a fixed number of days, today excluded
  - Keeps the findings of the last run for GET /api/admin/stale-check-ins
  - Logs one warning per stale record

CONFIGURATION (config.SchedulerConfig):
  - Interval:     How often to check (default: 1 hour)
  - LookbackDays: How many past days to scan (default: 7)
  - Enabled:      Whether the monitor runs (default: true)

USAGE:
  monitor := NewStaleCheckInMonitor(engine, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - attendance/report.go: Engine.StaleCheckIns
*/
package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/presence-engine/attendance"
)

// StaleCheckInMonitor reports CHECKED_IN records left open on past days.
type StaleCheckInMonitor struct {
	Engine       *attendance.Engine
	Interval     time.Duration
	LookbackDays int
	Enabled      bool

	// Now is the monitor clock. Tests pin it.
	Now func() time.Time
	Log *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	resultMu sync.RWMutex
	lastRun  time.Time
	stale    []attendance.Record
}

// NewStaleCheckInMonitor creates a monitor with default settings.
func NewStaleCheckInMonitor(engine *attendance.Engine, logger *zap.Logger) *StaleCheckInMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaleCheckInMonitor{
		Engine:       engine,
		Interval:     time.Hour,
		LookbackDays: 7,
		Enabled:      true,
		Now:          time.Now,
		Log:          logger.Named("stale_monitor"),
	}
}

// Start begins periodic checks. The first check runs immediately.
func (m *StaleCheckInMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		m.Log.Info("monitor disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.Interval)
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.run(m.ticker, m.stop)

	m.Log.Info("monitor started",
		zap.Duration("interval", m.Interval),
		zap.Int("lookback_days", m.LookbackDays),
	)
}

// Stop halts the monitor and waits for an in-flight check to finish.
func (m *StaleCheckInMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.Log.Info("monitor stopped")
}

func (m *StaleCheckInMonitor) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()

	m.check()
	for {
		select {
		case <-ticker.C:
			m.check()
		case <-stop:
			return
		}
	}
}

func (m *StaleCheckInMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := m.RunNow(ctx); err != nil {
		m.Log.Error("stale check failed", zap.Error(err))
	}
}

// RunNow performs one check and returns what it found.
func (m *StaleCheckInMonitor) RunNow(ctx context.Context) ([]attendance.Record, error) {
	now := m.Now()
	stale, err := m.Engine.StaleCheckIns(ctx, now, m.LookbackDays)
	if err != nil {
		return nil, err
	}

	for _, r := range stale {
		m.Log.Warn("check-in never closed",
			zap.String("staff", r.StaffEmail),
			zap.Stringer("date", r.Date),
			zap.String("record_id", r.ID),
		)
	}

	m.resultMu.Lock()
	m.lastRun = now
	m.stale = stale
	m.resultMu.Unlock()
	return stale, nil
}

// Last returns the findings of the most recent check. The zero time means no
// check has run yet.
func (m *StaleCheckInMonitor) Last() (time.Time, []attendance.Record) {
	m.resultMu.RLock()
	defer m.resultMu.RUnlock()
	return m.lastRun, append([]attendance.Record(nil), m.stale...)
}

// =============================================================================
// HANDLER
// =============================================================================

// StaleCheckIns lists records left CHECKED_IN on past days.
// GET /api/admin/stale-check-ins?days=
//
// Without ?days the monitor's last findings are served when it has run;
// otherwise the engine is queried directly.
func (h *Handler) StaleCheckIns(w http.ResponseWriter, r *http.Request) {
	days := 7
	if h.Monitor != nil {
		days = h.Monitor.LookbackDays
	}
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRangeDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 366", err)
			return
		}
		days = n
	} else if h.Monitor != nil {
		if ranAt, stale := h.Monitor.Last(); !ranAt.IsZero() {
			writeJSON(w, http.StatusOK, toStaleDTO(ranAt, stale, h.loc()))
			return
		}
	}

	now := h.Now()
	stale, err := h.Engine.StaleCheckIns(r.Context(), now, days)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStaleDTO(now, stale, h.loc()))
}
