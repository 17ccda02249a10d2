// Package uid generates monotonically increasing, globally unique 64-bit
// integer identifiers suitable for primary keys in distributed systems.
//
// # ID Structure (64 bits)
//
//	┌───┬──────────────────────────────┬──────────────┬──────────────┐
//	│ 0 │  33 bits: delta-seconds      │  20 bits:    │  10 bits:    │
//	│   │  since the configured epoch  │  worker ID   │  sequence    │
//	└───┴──────────────────────────────┴──────────────┴──────────────┘
//
// The sign bit is always zero, so every ID is a positive int64. The bit
// triple is fixed at construction; changing it invalidates all previously
// issued IDs.
//
// Two variants are provided. The direct variant (Minter) assigns IDs under a
// mutex with clock discipline. The cached variant (CachedGenerator) pre-mints
// whole seconds of IDs into a lock-free ring buffer refilled by a background
// padding executor, so the common fetch path is a single atomic take.
package uid

import (
	"fmt"
	"time"
)

const (
	// totalUsableBits is the ID width minus the sign bit.
	totalUsableBits = 63

	// DefaultEpochPoint is the default epoch date. Using a recent epoch
	// maximizes the lifespan of the timestamp field.
	DefaultEpochPoint = "2024-01-01"

	// epochPointFormat is the accepted calendar form for epoch dates,
	// interpreted as UTC midnight.
	epochPointFormat = "2006-01-02"
)

// BitLayout defines how the 63 usable bits of an ID are split between the
// timestamp delta, the worker ID and the intra-second sequence.
//
// The layout determines the trade-offs between lifespan (delta-seconds
// range), scale (number of concurrent workers) and per-worker throughput
// (IDs per second). All shift and mask values derive from the triple and are
// computed once at construction.
type BitLayout struct {
	// TimeBits is the width of the delta-seconds field. 33 bits cover
	// roughly 272 years from the epoch.
	TimeBits int

	// WorkerBits is the width of the worker ID field. 20 bits allow about a
	// million concurrently producing instances.
	WorkerBits int

	// SeqBits is the width of the intra-second sequence. 10 bits cap a
	// single worker at 1024 IDs per second.
	SeqBits int
}

// Pre-defined layouts.
var (
	// LayoutDefault is the standard 33/20/10 split: ~272 years of lifespan,
	// ~1M workers, 1024 IDs per second per worker.
	LayoutDefault = BitLayout{TimeBits: 33, WorkerBits: 20, SeqBits: 10}

	// LayoutCompact is the 28/22/13 split used by earlier deployments:
	// ~8.5 years of lifespan, ~4M workers, 8192 IDs per second per worker.
	// Kept for parsing IDs issued under that scheme.
	LayoutCompact = BitLayout{TimeBits: 28, WorkerBits: 22, SeqBits: 13}
)

// Validate checks that the triple is usable: every component positive and
// sign + time + worker + sequence bits fitting in 64.
func (l BitLayout) Validate() error {
	if l.TimeBits <= 0 || l.WorkerBits <= 0 || l.SeqBits <= 0 {
		return fmt.Errorf("%w: all components must be positive, got %d+%d+%d",
			ErrInvalidLayout, l.TimeBits, l.WorkerBits, l.SeqBits)
	}
	if total := l.TimeBits + l.WorkerBits + l.SeqBits; total > totalUsableBits {
		return fmt.Errorf("%w: components must fit in %d bits, got %d (%d+%d+%d)",
			ErrInvalidLayout, totalUsableBits, total, l.TimeBits, l.WorkerBits, l.SeqBits)
	}
	return nil
}

// TimestampShift returns the left shift positioning the delta-seconds field.
func (l BitLayout) TimestampShift() uint {
	return uint(l.WorkerBits + l.SeqBits)
}

// WorkerShift returns the left shift positioning the worker ID field.
func (l BitLayout) WorkerShift() uint {
	return uint(l.SeqBits)
}

// MaxDeltaSeconds returns the largest representable delta, 2^TimeBits - 1.
func (l BitLayout) MaxDeltaSeconds() int64 {
	return (int64(1) << l.TimeBits) - 1
}

// MaxWorkerID returns the largest representable worker ID, 2^WorkerBits - 1.
func (l BitLayout) MaxWorkerID() int64 {
	return (int64(1) << l.WorkerBits) - 1
}

// MaxSequence returns the largest representable sequence, 2^SeqBits - 1.
func (l BitLayout) MaxSequence() int64 {
	return (int64(1) << l.SeqBits) - 1
}

// Allocate packs the three fields into a single positive int64:
//
//	id = (delta << (WorkerBits+SeqBits)) | (worker << SeqBits) | seq
//
// Inputs must already satisfy their respective maxima; Allocate does not
// mask. The sign bit is zero for any layout that passes Validate.
func (l BitLayout) Allocate(deltaSeconds, workerID, sequence int64) int64 {
	return deltaSeconds<<l.TimestampShift() | workerID<<l.WorkerShift() | sequence
}

// Components holds the decomposed fields of an ID.
type Components struct {
	// ID is the original identifier.
	ID int64

	// DeltaSeconds is the whole seconds elapsed between the epoch and the
	// instant the ID was minted.
	DeltaSeconds int64

	// WorkerID identifies the producing instance.
	WorkerID int64

	// Sequence is the intra-second counter.
	Sequence int64

	// Timestamp is the minting instant, epoch + DeltaSeconds, in UTC.
	Timestamp time.Time
}

// Parse recovers the three fields of id by masked right shifts and converts
// the delta to a wall-clock instant using epoch. It returns nil when id is
// not an identifier produced by this layout family (id <= 0).
func (l BitLayout) Parse(id int64, epoch time.Time) *Components {
	if id <= 0 {
		return nil
	}
	delta := id >> l.TimestampShift() & l.MaxDeltaSeconds()
	worker := id >> l.WorkerShift() & l.MaxWorkerID()
	seq := id & l.MaxSequence()
	return &Components{
		ID:           id,
		DeltaSeconds: delta,
		WorkerID:     worker,
		Sequence:     seq,
		Timestamp:    epoch.Add(time.Duration(delta) * time.Second).UTC(),
	}
}

// String returns a compact description of the layout.
func (l BitLayout) String() string {
	return fmt.Sprintf("{time:%d worker:%d seq:%d}", l.TimeBits, l.WorkerBits, l.SeqBits)
}

// ParseEpochPoint parses a calendar date in YYYY-MM-DD form into its
// start-of-day UTC instant. Dates at or after the current instant are
// rejected, since a future epoch would produce negative deltas.
func ParseEpochPoint(s string) (time.Time, error) {
	epoch, err := time.Parse(epochPointFormat, s)
	if err != nil {
		return time.Time{}, newConfigError("epochPoint", s,
			"not a calendar date", "must be YYYY-MM-DD")
	}
	if !epoch.Before(time.Now().UTC()) {
		return time.Time{}, newConfigError("epochPoint", s,
			"epoch is in the future", "must be a past date")
	}
	return epoch, nil
}
