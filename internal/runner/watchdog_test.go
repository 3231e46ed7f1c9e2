package runner

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestWatchdogSamplePausesAboveThreshold(t *testing.T) {
	w := NewWatchdog("/tmp", DefaultWatchdogInterval, 0.5)
	w.statfs = func(path string, buf *unix.Statfs_t) error {
		buf.Blocks = 100
		buf.Bfree = 10 // 90% used
		buf.Bsize = 1
		return nil
	}
	w.sample()
	if !w.Paused() {
		t.Fatal("expected watchdog to pause when usage exceeds threshold")
	}
}

func TestWatchdogSampleResumesBelowThreshold(t *testing.T) {
	w := NewWatchdog("/tmp", DefaultWatchdogInterval, 0.5)
	w.statfs = func(path string, buf *unix.Statfs_t) error {
		buf.Blocks = 100
		buf.Bfree = 90 // 10% used
		buf.Bsize = 1
		return nil
	}
	w.sample()
	if w.Paused() {
		t.Fatal("expected watchdog to not pause when usage is below threshold")
	}
}

func TestWatchdogSampleErrorLeavesStateUnchanged(t *testing.T) {
	w := NewWatchdog("/tmp", DefaultWatchdogInterval, 0.5)
	w.paused.Store(true)
	w.statfs = func(path string, buf *unix.Statfs_t) error {
		return errStatfsUnavailable
	}
	w.sample()
	if !w.Paused() {
		t.Fatal("expected pause state to be left unchanged on sampling error")
	}
}

var errStatfsUnavailable = &statfsErr{}

type statfsErr struct{}

func (e *statfsErr) Error() string { return "statfs unavailable" }
