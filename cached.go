// Package uid - cached.go composes the minter, the ring buffer and the
// padding executor into the public cacheable generator.

package uid

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// CachedGenerator is the cacheable, high-throughput ID fetching surface.
//
// The common path of NextID is a single lock-free take from the ring of
// pre-minted IDs; the padding executor refills the ring in the background
// whenever consumption drains it below the configured threshold. IDs drawn
// from the ring are pairwise unique and fall within a contiguous band of
// recently minted values, but are not guaranteed to reach concurrent
// callers in strictly increasing order. Callers that need per-caller strict
// ordering should use a Minter directly.
type CachedGenerator struct {
	minter   *Minter
	ring     *RingBuffer
	executor *PaddingExecutor
	layout   BitLayout
	log      *zap.Logger
	closed   atomic.Bool
}

// NewCachedGenerator builds and warms a cached generator.
//
// Construction order: validate the configuration (layout included), resolve
// the worker ID through the configured source, build the minter, build the
// ring, build the executor, run one
// synchronous padding cycle so the ring is full before the first caller
// arrives, then start the executor.
func NewCachedGenerator(cfg Config) (*CachedGenerator, error) {
	epoch, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	rawWorker, err := cfg.Source.AssignWorkerID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("resolve worker id: %w", err)
	}
	workerID := TruncateWorkerID(rawWorker, cfg.Layout.WorkerBits)

	minter, err := NewMinter(MinterConfig{
		Layout:             cfg.Layout,
		Epoch:              epoch,
		WorkerID:           workerID,
		BackwardEnabled:    cfg.BackwardEnabled,
		MaxBackwardSeconds: cfg.MaxBackwardSeconds,
		Source:             cfg.Source,
		Logger:             cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	bufferSize := (cfg.Layout.MaxSequence() + 1) << cfg.BoostPower
	ring, err := NewRingBuffer(bufferSize, cfg.PaddingFactor, cfg.Logger)
	if err != nil {
		return nil, err
	}

	executor, err := NewPaddingExecutor(minter, ring, cfg.ScheduleInterval, cfg.Logger)
	if err != nil {
		return nil, err
	}

	g := &CachedGenerator{
		minter:   minter,
		ring:     ring,
		executor: executor,
		layout:   cfg.Layout,
		log:      cfg.Logger,
	}

	executor.PaddingBuffer()
	if err := executor.Start(); err != nil {
		return nil, err
	}

	g.log.Info("cached generator ready",
		zap.Int64("worker", workerID),
		zap.Stringer("layout", cfg.Layout),
		zap.Int64("buffer_size", bufferSize))
	return g, nil
}

// NextID returns a pre-minted identifier. The call never blocks: when
// consumers have outrun the producer it fails with ErrRingExhausted (having
// already requested a refill) and the caller may retry.
func (g *CachedGenerator) NextID() (int64, error) {
	if g.closed.Load() {
		return 0, ErrGeneratorClosed
	}
	return g.ring.Take()
}

// Parse decomposes an identifier produced under this generator's layout and
// epoch. It returns nil when id is not an identifier (id <= 0). Parsing is
// pure: two calls on the same id return equal components.
func (g *CachedGenerator) Parse(id int64) *Components {
	return g.layout.Parse(id, g.minter.Epoch())
}

// WorkerID returns the worker identity the generator mints under.
func (g *CachedGenerator) WorkerID() int64 {
	return g.minter.WorkerID()
}

// Layout returns the active bit triple.
func (g *CachedGenerator) Layout() BitLayout {
	return g.layout
}

// Stats returns the underlying minter counters.
func (g *CachedGenerator) Stats() MinterStats {
	return g.minter.Stats()
}

// Ring exposes the buffer for metrics collection.
func (g *CachedGenerator) Ring() *RingBuffer {
	return g.ring
}

// Close stops the padding executor. NextID calls that start after Close
// observe ErrGeneratorClosed; a call already past that check when Close runs
// still takes from the ring. Close is idempotent.
func (g *CachedGenerator) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	g.executor.Shutdown()
	g.log.Info("cached generator closed")
	return nil
}
