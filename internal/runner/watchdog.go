package runner

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Watchdog samples disk usage on an interval and flips a shared pause
// flag when usage exceeds a threshold, per spec.md §4.7 step 1. Workers
// only observe the flag at task boundaries.
type Watchdog struct {
	path      string
	interval  time.Duration
	threshold float64
	paused    atomic.Bool
	statfs    func(path string, buf *unix.Statfs_t) error
}

// DefaultWatchdogInterval and DefaultWatchdogThreshold are spec.md §4.7's
// named defaults (30s / 0.80).
const (
	DefaultWatchdogInterval  = 30 * time.Second
	DefaultWatchdogThreshold = 0.80
)

// NewWatchdog returns a Watchdog sampling path (typically CRATER_WORK_DIR
// — see the Open Question resolution recorded in DESIGN.md).
func NewWatchdog(path string, interval time.Duration, threshold float64) *Watchdog {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	if threshold <= 0 {
		threshold = DefaultWatchdogThreshold
	}
	return &Watchdog{path: path, interval: interval, threshold: threshold, statfs: unix.Statfs}
}

// Paused reports whether the watchdog currently believes disk usage
// exceeds its threshold.
func (w *Watchdog) Paused() bool { return w.paused.Load() }

// Run samples usage every interval until ctx is cancelled (the "stop
// signal" spec.md §5 describes). Safe to run in its own goroutine.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *Watchdog) sample() {
	var buf unix.Statfs_t
	if err := w.statfs(w.path, &buf); err != nil {
		// Sampling failure is not fatal to the pool; leave the pause
		// flag as-is and try again next tick.
		return
	}
	total := buf.Blocks * uint64(buf.Bsize)
	free := buf.Bfree * uint64(buf.Bsize)
	if total == 0 {
		return
	}
	used := float64(total-free) / float64(total)
	w.paused.Store(used > w.threshold)
}
