// Package uid - minter.go implements the synchronized direct minting path.
//
// A Minter owns the (lastSecond, sequence, workerID) state under a single
// mutex and assigns the next ID with clock discipline: seconds that move
// forward reset the sequence, a wrapped sequence spins to the next second,
// and a regressed clock is handled by policy (bounded spin, worker
// reassignment, or a typed failure).

package uid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// clockSpinInterval is the sleep between wall-clock re-reads while waiting
// out a regression or a sequence wrap. The waits are bounded by the
// tolerance window and by one second respectively.
const clockSpinInterval = 500 * time.Microsecond

// MinterConfig configures a direct Minter.
type MinterConfig struct {
	// Layout is the bit triple. Zero value means LayoutDefault.
	Layout BitLayout

	// Epoch is the UTC instant deltas are measured from.
	Epoch time.Time

	// WorkerID is the identity of this instance. Values wider than the
	// layout's worker field are truncated.
	WorkerID int64

	// BackwardEnabled selects the tolerant clock-regression policy. When
	// false any regression fails the mint with ErrClockRegression.
	BackwardEnabled bool

	// MaxBackwardSeconds is the tolerant policy's spin-wait window.
	// Regressions beyond it trigger worker reassignment via Source.
	MaxBackwardSeconds int64

	// Source provides a fresh worker ID on intolerable regression. When nil
	// such regressions fail with ErrClockRegression even under the tolerant
	// policy.
	Source WorkerIDSource

	// Logger receives mint-path events. Nil means no logging.
	Logger *zap.Logger
}

// Minter assigns IDs directly under a mutex.
//
// IDs produced by a single Minter are strictly increasing, except across a
// worker reassignment after an intolerable clock regression: minting then
// restarts at the regressed second under the new worker ID, so the IDs that
// follow can be smaller than earlier ones. Throughput is
// capped at maxSequence+1 IDs per second; under sustained overload NextID
// blocks until the next second. A Minter is safe for concurrent use.
type Minter struct {
	mu         sync.Mutex
	layout     BitLayout
	epoch      time.Time
	epochSec   int64
	workerID   int64
	lastSecond int64
	sequence   int64

	backwardTolerant bool
	maxBackward      int64
	source           WorkerIDSource
	log              *zap.Logger

	// nowSeconds reads the wall clock in whole seconds. Swapped in tests.
	nowSeconds func() int64

	// Counters are atomics so stat reads never contend with the mint path.
	minted        atomic.Int64
	clockBackward atomic.Int64
	sequenceWaits atomic.Int64
	reassignments atomic.Int64
}

// MinterStats is a point-in-time snapshot of a Minter's counters.
type MinterStats struct {
	Minted        int64 // IDs successfully assigned
	ClockBackward int64 // regressions observed, recovered or not
	SequenceWaits int64 // sequence wraps that had to wait for the next second
	Reassignments int64 // worker IDs replaced after intolerable regression
}

// NewMinter builds a Minter. The layout is validated and the worker ID is
// truncated to the layout's worker width.
func NewMinter(cfg MinterConfig) (*Minter, error) {
	if cfg.Layout == (BitLayout{}) {
		cfg.Layout = LayoutDefault
	}
	if err := cfg.Layout.Validate(); err != nil {
		return nil, err
	}
	if cfg.Epoch.IsZero() {
		epoch, err := ParseEpochPoint(DefaultEpochPoint)
		if err != nil {
			return nil, err
		}
		cfg.Epoch = epoch
	}
	if cfg.MaxBackwardSeconds < 0 {
		return nil, newConfigError("maxBackwardSeconds",
			fmt.Sprintf("%d", cfg.MaxBackwardSeconds),
			"must be non-negative", "seconds >= 0")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Minter{
		layout:           cfg.Layout,
		epoch:            cfg.Epoch,
		epochSec:         cfg.Epoch.Unix(),
		workerID:         TruncateWorkerID(cfg.WorkerID, cfg.Layout.WorkerBits),
		backwardTolerant: cfg.BackwardEnabled,
		maxBackward:      cfg.MaxBackwardSeconds,
		source:           cfg.Source,
		log:              logger,
		nowSeconds:       func() int64 { return time.Now().Unix() },
	}, nil
}

// NextID assigns the next identifier.
//
// The critical section may spin-wait up to a few seconds when the clock has
// regressed within tolerance or the sequence wrapped within the current
// second; both waits are bounded. Failure modes are ErrTimestampExhausted
// (the layout's lifespan is over) and ErrClockRegression (strict policy, or
// tolerant policy with no reassignment source).
func (m *Minter) NextID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID()
}

// nextID implements the mint state machine. Callers hold m.mu.
func (m *Minter) nextID() (int64, error) {
	now := m.nowSeconds()
	if err := m.checkDelta(now); err != nil {
		return 0, err
	}

	if now < m.lastSecond {
		m.clockBackward.Add(1)
		drift := m.lastSecond - now

		switch {
		case m.backwardTolerant && drift <= m.maxBackward:
			// Small regression: wait for the clock to catch up.
			m.log.Warn("clock regression within tolerance, waiting",
				zap.Int64("drift_s", drift), zap.Int64("worker", m.workerID))
			now = m.waitUntil(m.lastSecond)

		case m.backwardTolerant && m.source != nil:
			// Intolerable regression: switch identity and restart from the
			// current second. The fresh worker ID cannot collide with IDs
			// minted under the old one, so lastSecond may move backwards.
			raw, err := m.source.AssignWorkerID(context.Background())
			if err != nil {
				return 0, fmt.Errorf("reassign worker id after clock regression: %w", err)
			}
			old := m.workerID
			m.workerID = TruncateWorkerID(raw, m.layout.WorkerBits)
			m.reassignments.Add(1)
			m.log.Warn("clock regression beyond tolerance, worker id reassigned",
				zap.Int64("drift_s", drift),
				zap.Int64("old_worker", old), zap.Int64("new_worker", m.workerID))
			m.lastSecond = now
			m.sequence = 0
			m.minted.Add(1)
			return m.layout.Allocate(now-m.epochSec, m.workerID, m.sequence), nil

		default:
			return 0, newClockError(now, m.lastSecond, m.tolerance(), m.workerID)
		}
	}

	if now == m.lastSecond {
		m.sequence = (m.sequence + 1) & m.layout.MaxSequence()
		if m.sequence == 0 {
			// The whole sequence range for this second is spent.
			m.sequenceWaits.Add(1)
			now = m.waitPast(m.lastSecond)
		}
	} else {
		m.sequence = 0
	}

	m.lastSecond = now
	m.minted.Add(1)
	return m.layout.Allocate(now-m.epochSec, m.workerID, m.sequence), nil
}

// BatchForSecond mints the complete [0, maxSequence] block for one second:
// maxSequence+1 contiguous IDs sharing the same delta. This is the padding
// executor's supply path; the executor owns the second cursor, so the batch
// does not consult or advance lastSecond. A Minter must not serve both
// NextID callers and a padding executor, or seconds could be issued twice.
func (m *Minter) BatchForSecond(second int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkDelta(second); err != nil {
		return nil, err
	}
	delta := second - m.epochSec
	if delta < 0 {
		return nil, fmt.Errorf("second %d predates the epoch", second)
	}

	n := m.layout.MaxSequence() + 1
	ids := make([]int64, n)
	base := m.layout.Allocate(delta, m.workerID, 0)
	for i := range ids {
		ids[i] = base + int64(i)
	}
	m.minted.Add(n)
	return ids, nil
}

// WorkerID returns the current worker identity. It changes only on
// regression reassignment.
func (m *Minter) WorkerID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.workerID
}

// Layout returns the bit triple this minter allocates with.
func (m *Minter) Layout() BitLayout {
	return m.layout
}

// Epoch returns the configured epoch instant.
func (m *Minter) Epoch() time.Time {
	return m.epoch
}

// Stats returns a snapshot of the mint counters.
func (m *Minter) Stats() MinterStats {
	return MinterStats{
		Minted:        m.minted.Load(),
		ClockBackward: m.clockBackward.Load(),
		SequenceWaits: m.sequenceWaits.Load(),
		Reassignments: m.reassignments.Load(),
	}
}

// checkDelta fails with ErrTimestampExhausted once the second has outrun the
// delta field.
func (m *Minter) checkDelta(second int64) error {
	if second-m.epochSec > m.layout.MaxDeltaSeconds() {
		return fmt.Errorf("%w: delta %d exceeds %d bits",
			ErrTimestampExhausted, second-m.epochSec, m.layout.TimeBits)
	}
	return nil
}

// tolerance is the spin window reported in ClockError, zero when strict.
func (m *Minter) tolerance() int64 {
	if m.backwardTolerant {
		return m.maxBackward
	}
	return 0
}

// waitUntil re-reads the clock until it reaches at least target.
func (m *Minter) waitUntil(target int64) int64 {
	now := m.nowSeconds()
	for now < target {
		time.Sleep(clockSpinInterval)
		now = m.nowSeconds()
	}
	return now
}

// waitPast re-reads the clock until it is strictly beyond target.
func (m *Minter) waitPast(target int64) int64 {
	now := m.nowSeconds()
	for now <= target {
		time.Sleep(clockSpinInterval)
		now = m.nowSeconds()
	}
	return now
}
