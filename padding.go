// Package uid - padding.go implements the background replenishment of the
// ring buffer with batches of pre-minted IDs.
//
// One padding cycle mints whole seconds at a time: the executor owns an
// atomic second cursor, asks the minter for the complete sequence block of
// the next second, and puts the block into the ring until the ring reports
// full. Cycles are coalesced with a compare-and-set running flag so that the
// put side of the ring always has exactly one producer, regardless of how
// many consumers trip the refill threshold at once.

package uid

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron"
	"go.uber.org/zap"
)

// paddingWorkers is the size of the pool draining async refill requests.
// The running CAS makes more than a couple of workers pointless.
const paddingWorkers = 2

// shutdownWait bounds how long Shutdown waits for in-flight cycles.
const shutdownWait = 5 * time.Second

// PaddingExecutor feeds the ring buffer with pre-minted IDs, on demand and
// optionally on a fixed schedule.
type PaddingExecutor struct {
	minter *Minter
	ring   *RingBuffer
	log    *zap.Logger

	// running guards paddingBuffer: at most one cycle in flight.
	running atomic.Bool

	// paddingSecond is the last second whose block was handed to the ring.
	paddingSecond atomic.Int64

	jobs    chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool

	cron     *cron.Cron
	interval int

	nowSeconds func() int64
}

// NewPaddingExecutor builds an executor over minter and ring.
// scheduleInterval > 0 additionally schedules a padding cycle every that
// many seconds; 0 disables the periodic mode. Start must be called before
// AsyncPadding has any effect.
func NewPaddingExecutor(minter *Minter, ring *RingBuffer, scheduleInterval int, logger *zap.Logger) (*PaddingExecutor, error) {
	if scheduleInterval < 0 {
		return nil, newConfigError("scheduleInterval",
			fmt.Sprintf("%d", scheduleInterval),
			"must be non-negative", "seconds >= 0, 0 disables")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &PaddingExecutor{
		minter:     minter,
		ring:       ring,
		log:        logger,
		jobs:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
		interval:   scheduleInterval,
		nowSeconds: func() int64 { return time.Now().Unix() },
	}
	// First batch covers the current second.
	e.paddingSecond.Store(e.nowSeconds() - 1)
	ring.setRefillRequest(e.AsyncPadding)
	return e, nil
}

// Start launches the worker pool and, when configured, the periodic
// schedule.
func (e *PaddingExecutor) Start() error {
	for i := 0; i < paddingWorkers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for {
				select {
				case <-e.quit:
					return
				case <-e.jobs:
					e.PaddingBuffer()
				}
			}
		}()
	}
	if e.interval > 0 {
		e.cron = cron.New()
		if err := e.cron.AddFunc(fmt.Sprintf("@every %ds", e.interval), e.AsyncPadding); err != nil {
			return fmt.Errorf("schedule periodic padding: %w", err)
		}
		e.cron.Start()
		e.log.Info("periodic padding scheduled", zap.Int("interval_s", e.interval))
	}
	return nil
}

// AsyncPadding requests one padding cycle without blocking. Requests made
// while a cycle is queued or in flight coalesce into that cycle.
func (e *PaddingExecutor) AsyncPadding() {
	if e.stopped.Load() {
		return
	}
	select {
	case e.jobs <- struct{}{}:
	default:
		// A cycle is already queued.
	}
}

// PaddingBuffer runs one padding cycle synchronously: mint second blocks and
// put them into the ring until the ring reports full. If another cycle is in
// flight the call returns immediately.
func (e *PaddingExecutor) PaddingBuffer() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	defer e.running.Store(false)

	var put int64
	for {
		second := e.paddingSecond.Add(1)
		ids, err := e.minter.BatchForSecond(second)
		if err != nil {
			// Only the delta running out lands here; the ring keeps serving
			// whatever is already buffered.
			e.log.Error("padding batch failed", zap.Int64("second", second), zap.Error(err))
			return
		}
		for _, id := range ids {
			if !e.ring.Put(id) {
				e.log.Debug("padding cycle complete",
					zap.Int64("ids_put", put), zap.Int64("through_second", second))
				return
			}
			put++
		}
	}
}

// PaddingSecond returns the last second handed to the ring. Mostly useful
// for tests and metrics.
func (e *PaddingExecutor) PaddingSecond() int64 {
	return e.paddingSecond.Load()
}

// Shutdown stops the schedule, rejects new async requests and joins the
// worker pool, waiting at most a bounded interval for in-flight cycles.
func (e *PaddingExecutor) Shutdown() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	if e.cron != nil {
		e.cron.Stop()
	}
	close(e.quit)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownWait):
		e.log.Warn("padding workers did not stop within the shutdown window")
	}
}
