/*
scheduler.go - Background accrual scheduler

PURPOSE:
  Periodically invokes the accrual engine so monthly top-ups, yearly
  resets, and carry-forward expiries happen without manual triggering.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Fires immediately on start, then on every tick
  - The engine itself dedupes by month, so a generous interval (hourly)
    is safe: redundant runs are no-ops

USAGE:
  scheduler := NewAccrualScheduler(handler.Accrual)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunUpdate endpoint (manual trigger, same engine)
  - leave/accrual.go: The idempotent engine this drives
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// AccrualScheduler drives the periodic accrual run.
type AccrualScheduler struct {
	Engine        *leave.AccrualEngine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a scheduler with the default hourly interval.
func NewAccrualScheduler(engine *leave.AccrualEngine) *AccrualScheduler {
	return &AccrualScheduler{
		Engine:        engine,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AccrualScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AccrualScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AccrualScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.runOnce()

	for {
		select {
		case <-as.ticker.C:
			as.runOnce()
		case <-as.stop:
			return
		}
	}
}

func (as *AccrualScheduler) runOnce() {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := as.Engine.RunPeriodicUpdate(ctx, now); err != nil {
		log.Printf("[Scheduler] Accrual run failed: %v", err)
		return
	}
	log.Printf("[Scheduler] Accrual check completed at %v", now.Format("2006-01-02 15:04"))
}

// RunNow triggers an immediate run (for testing/admin).
func (as *AccrualScheduler) RunNow() {
	as.runOnce()
}
