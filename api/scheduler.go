/*
scheduler.go - Periodic snapshot scheduler

PURPOSE:
  Takes a snapshot at a fixed interval so point-in-time queries have
  regular boundaries without a client having to call POST /api/snapshots.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Uses the same Ledger.TakeSnapshot path as the HTTP endpoint
  - Failures are logged and retried on the next tick

CONFIGURATION:
  - Interval: How often to snapshot (SNAPLEDGER_SNAPSHOT_INTERVAL)
  - Enabled: False when Interval <= 0

USAGE:
  scheduler := NewSnapshotScheduler(ledger, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/snapshot-ledger/generic"
	"github.com/warp/snapshot-ledger/logx"
)

// SnapshotScheduler takes snapshots on a timer.
type SnapshotScheduler struct {
	Ledger   *generic.Ledger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSnapshotScheduler creates a scheduler. It is disabled when interval <= 0.
func NewSnapshotScheduler(ledger *generic.Ledger, interval time.Duration) *SnapshotScheduler {
	return &SnapshotScheduler{
		Ledger:   ledger,
		Interval: interval,
		Enabled:  interval > 0,
	}
}

// Start begins the scheduler.
func (ss *SnapshotScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		logx.Info("Scheduler", "Disabled, not starting")
		return
	}
	if ss.ticker != nil {
		return
	}

	ss.ticker = time.NewTicker(ss.Interval)
	ss.stop = make(chan struct{})
	ss.wg.Add(1)

	go ss.run(ss.ticker, ss.stop)

	logx.Info("Scheduler", "Started with interval: %v", ss.Interval)
}

// Stop stops the scheduler and waits for an in-flight snapshot to finish.
func (ss *SnapshotScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker == nil {
		return
	}
	ss.ticker.Stop()
	close(ss.stop)
	ss.wg.Wait()
	ss.ticker = nil
	logx.Info("Scheduler", "Stopped")
}

func (ss *SnapshotScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ss.wg.Done()

	for {
		select {
		case <-ticker.C:
			ss.tick()
		case <-stop:
			return
		}
	}
}

func (ss *SnapshotScheduler) tick() {
	id, err := ss.Ledger.TakeSnapshot(context.Background())
	if err != nil {
		logx.Error("Scheduler", "snapshot failed: %v", err)
		return
	}
	logx.Info("Scheduler", "took snapshot %d", id)
}
