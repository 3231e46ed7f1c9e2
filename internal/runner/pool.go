package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LuuuXXX/crater-ohos/internal/result"
	"github.com/LuuuXXX/crater-ohos/internal/toolchain"
)

// pauseRecheckInterval bounds how often a suspended worker rechecks the
// watchdog's pause flag, trading promptness for not busy-spinning.
const pauseRecheckInterval = 200 * time.Millisecond

// BuildStep executes one (package, toolchain) run and returns its
// Outcome plus captured log bytes, or an error if the step itself could
// not be classified automatically (the pool classifies the error text
// via ClassifyError before recording it).
type BuildStep interface {
	Run(ctx context.Context, pkg string, tc toolchain.Toolchain, stage Stage) (result.Outcome, []byte, error)
}

// NextPackage produces the next package id to test, or ("", false) when
// the selection is exhausted. Implementations must be safe under
// concurrent call, per spec.md §5 ("the caller provides this").
type NextPackage func() (string, bool)

// RecordProgress is the C4 contract the pool reports results through.
type RecordProgress func(ctx context.Context, pkg string, tc toolchain.Toolchain, outcome result.Outcome, log []byte)

// Pool drives the fan-out for one experiment in-process, per spec.md
// §4.7.
type Pool struct {
	ToolchainA, ToolchainB toolchain.Toolchain
	Next                   NextPackage
	Build                  BuildStep
	Record                 RecordProgress
	Workers                int
	Watchdog               *Watchdog

	aborted atomic.Bool
	idle    atomic.Int32
}

// Abort sets the shared cancellation flag; workers exit at their next
// task boundary and record no further results, per spec.md §5.
func (p *Pool) Abort() { p.aborted.Store(true) }

// Run spawns the watchdog and N workers, blocking until every worker has
// permanently gone idle (selection exhausted) or Abort is called and all
// workers have observed it.
func (p *Pool) Run(ctx context.Context) {
	n := p.Workers
	if n < 1 {
		n = 1
	}

	wdCtx, stopWatchdog := context.WithCancel(ctx)
	defer stopWatchdog()
	if p.Watchdog != nil {
		go p.Watchdog.Run(wdCtx)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			p.worker(ctx)
		}()
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	for {
		if p.aborted.Load() {
			return
		}
		if p.Watchdog != nil && p.Watchdog.Paused() {
			// Suspend before the next package boundary until usage
			// falls back below threshold or abort is requested.
			for p.Watchdog.Paused() && !p.aborted.Load() {
				select {
				case <-ctx.Done():
					return
				case <-time.After(pauseRecheckInterval):
				}
			}
		}

		pkg, ok := p.Next()
		if !ok {
			p.idle.Add(1)
			return
		}

		for _, tc := range []toolchain.Toolchain{p.ToolchainA, p.ToolchainB} {
			if p.aborted.Load() {
				return
			}
			p.runOne(ctx, pkg, tc)
		}
	}
}

func (p *Pool) runOne(ctx context.Context, pkg string, tc toolchain.Toolchain) {
	outcome, log, err := p.Build.Run(ctx, pkg, tc, StageBuild)
	if err != nil {
		outcome = ClassifyError(StageBuild, err.Error())
		log = []byte(err.Error())
	}
	p.Record(ctx, pkg, tc, outcome, log)
}
