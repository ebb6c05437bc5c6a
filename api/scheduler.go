/*
scheduler.go - Periodic stock invariant check

PURPOSE:
  Runs rental.Engine.CheckInvariants on an interval and keeps the latest
  report for GET /api/admin/reconciliation.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - A single run can catch an operation between its two reads and report a
    one-off discrepancy, so a book is only flagged as persistent drift when
    it is found drifting on two consecutive runs
  - Persistent drift is logged at Error level once per streak
  - Nothing is repaired

USAGE:
  scheduler := NewReconciliationScheduler(engine, logger)
  scheduler.CheckInterval = 5 * time.Minute
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - rental/reconcile.go: CheckInvariants
  - handlers.go: GetReconciliation, RunReconciliation
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/warp/book-rental/rental"
)

// persistentAfter is how many consecutive runs a book must drift on.
const persistentAfter = 2

// ReconciliationScheduler runs invariant checks in the background.
type ReconciliationScheduler struct {
	Engine        *rental.Engine
	Logger        rental.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex // guards ticker/stop

	stateMu sync.RWMutex
	last    *rental.InvariantReport
	streak  map[uuid.UUID]int
	runs    int
}

// ReconciliationState is a snapshot of what the scheduler has seen.
type ReconciliationState struct {
	Last       *rental.InvariantReport
	Persistent []rental.Discrepancy
	Runs       int
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(engine *rental.Engine, logger rental.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Engine:        engine,
		Logger:        logger,
		CheckInterval: 5 * time.Minute,
		Enabled:       true,
		streak:        make(map[uuid.UUID]int),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		rs.Logger.Info("reconciliation scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run(rs.ticker, rs.stop)

	rs.Logger.Info("reconciliation scheduler started", "interval", rs.CheckInterval.String())
}

// Stop stops the scheduler and waits for a running check to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Logger.Info("reconciliation scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	rs.check(ctx)
	for {
		select {
		case <-ticker.C:
			rs.check(ctx)
		case <-stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) check(ctx context.Context) {
	if _, err := rs.RunNow(ctx); err != nil && ctx.Err() == nil {
		rs.Logger.Error("invariant check failed", rental.LogAttrError, err)
	}
}

// RunNow runs one check immediately and returns the updated state.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) (ReconciliationState, error) {
	report, err := rs.Engine.CheckInvariants(ctx)
	if err != nil {
		return rs.State(), err
	}

	rs.stateMu.Lock()
	defer rs.stateMu.Unlock()

	next := make(map[uuid.UUID]int, len(report.Discrepancies))
	for _, d := range report.Discrepancies {
		next[d.BookID] = rs.streak[d.BookID] + 1
		if next[d.BookID] == persistentAfter {
			rs.Logger.Error("persistent stock invariant drift",
				rental.LogAttrBookID, d.BookID.String(),
				"stock", d.Stock,
				"expected", d.Expected,
				"open_rentals", d.OpenRentals)
		}
	}
	rs.streak = next
	rs.last = report
	rs.runs++
	return rs.stateLocked(), nil
}

// State returns the latest report and the books drifting persistently.
func (rs *ReconciliationScheduler) State() ReconciliationState {
	rs.stateMu.RLock()
	defer rs.stateMu.RUnlock()
	return rs.stateLocked()
}

func (rs *ReconciliationScheduler) stateLocked() ReconciliationState {
	state := ReconciliationState{Last: rs.last, Runs: rs.runs}
	if rs.last != nil {
		state.Persistent = lo.Filter(rs.last.Discrepancies, func(d rental.Discrepancy, _ int) bool {
			return rs.streak[d.BookID] >= persistentAfter
		})
	}
	return state
}

// Reset forgets previous runs (after the database is reset).
func (rs *ReconciliationScheduler) Reset() {
	rs.stateMu.Lock()
	defer rs.stateMu.Unlock()
	rs.last = nil
	rs.streak = make(map[uuid.UUID]int)
	rs.runs = 0
}
