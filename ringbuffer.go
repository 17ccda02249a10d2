// Package uid - ringbuffer.go implements the lock-free slot ring that hands
// pre-minted IDs from the padding producer to concurrent consumers.
//
// Layout follows the classic bounded-queue designs where every
// independently-mutated counter gets its own cache line: tail, cursor and
// each slot flag are padded to 64 bytes so producer and consumers never
// false-share. Slots are published payload-first, flag-second, tail-last; a
// consumer that has CAS-claimed a position below tail is therefore
// guaranteed to observe a FULL flag and a valid payload.

package uid

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Slot flag states. EMPTY slots may be filled by the producer; FULL slots
// hold an ID awaiting consumption.
const (
	flagEmpty int64 = 0
	flagFull  int64 = 1
)

// cacheLineSize is the padding unit separating hot counters.
const cacheLineSize = 64

// initialCursor is the starting value of both tail and cursor: one before
// the first sequence.
const initialCursor int64 = -1

// paddedInt64 is an atomic int64 occupying a full cache line.
type paddedInt64 struct {
	v atomic.Int64
	_ [cacheLineSize - 8]byte
}

// RejectedPutHandler is invoked when a put finds the ring full. The ID is
// surplus and may be discarded; the default handler logs at Debug and drops
// it.
type RejectedPutHandler func(b *RingBuffer, id int64)

// RejectedTakeHandler is invoked when a take finds the ring empty. Its
// return value becomes the error of the failed take; the default handler
// logs at Warn and returns ErrRingExhausted.
type RejectedTakeHandler func(b *RingBuffer) error

// RingBuffer is a bounded queue of pre-minted IDs with one batching producer
// and many concurrent consumers.
//
// tail is the last published producer position and cursor the last consumed
// position; both start at -1 and satisfy cursor <= tail <= cursor+size.
// Take never blocks: it either claims a position or reports exhaustion
// through the rejected-take handler. Put is additionally serialized with a
// mutex, but correctness relies on the single-producer discipline of the
// padding executor; concurrent producers would need a different
// flag/tail publication order.
type RingBuffer struct {
	slots []int64
	flags []paddedInt64
	mask  int64
	size  int64

	tail   paddedInt64
	cursor paddedInt64

	putMu sync.Mutex

	paddingThreshold int64
	requestRefill    func()

	rejectedPut  RejectedPutHandler
	rejectedTake RejectedTakeHandler

	putRejects  atomic.Int64
	takeRejects atomic.Int64

	log *zap.Logger
}

// NewRingBuffer builds a ring of bufferSize slots. bufferSize must be a
// power of two; paddingFactor, in percent of bufferSize, sets the fill level
// below which takes request an asynchronous refill.
func NewRingBuffer(bufferSize int64, paddingFactor int, logger *zap.Logger) (*RingBuffer, error) {
	if bufferSize <= 0 || bufferSize&(bufferSize-1) != 0 {
		return nil, newConfigError("bufferSize",
			fmt.Sprintf("%d", bufferSize),
			"not a positive power of two", "must be 2^n")
	}
	if paddingFactor <= 0 || paddingFactor >= 100 {
		return nil, newConfigError("paddingFactor",
			fmt.Sprintf("%d", paddingFactor),
			"out of range", "must be in (0, 100)")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &RingBuffer{
		slots:            make([]int64, bufferSize),
		flags:            make([]paddedInt64, bufferSize),
		mask:             bufferSize - 1,
		size:             bufferSize,
		paddingThreshold: bufferSize * int64(paddingFactor) / 100,
		log:              logger,
	}
	b.tail.v.Store(initialCursor)
	b.cursor.v.Store(initialCursor)
	b.rejectedPut = b.defaultRejectedPut
	b.rejectedTake = b.defaultRejectedTake
	return b, nil
}

// SetRejectedPutHandler replaces the full-ring policy. Call before the
// producer starts.
func (b *RingBuffer) SetRejectedPutHandler(h RejectedPutHandler) {
	if h != nil {
		b.rejectedPut = h
	}
}

// SetRejectedTakeHandler replaces the empty-ring policy. Call before
// consumers start.
func (b *RingBuffer) SetRejectedTakeHandler(h RejectedTakeHandler) {
	if h != nil {
		b.rejectedTake = h
	}
}

// setRefillRequest wires the executor callback fired when the fill level
// drops below the padding threshold. Duplicate requests coalesce on the
// executor side.
func (b *RingBuffer) setRefillRequest(fn func()) {
	b.requestRefill = fn
}

// Put publishes one ID into the next slot and reports whether it was
// accepted. A full ring, or a next slot whose flag is still FULL after a
// complete traversal, routes the ID to the rejected-put handler and returns
// false.
//
// Put must only be called by one producer at a time; the mutex is a
// defensive backstop, not a license for concurrent producers.
func (b *RingBuffer) Put(id int64) bool {
	b.putMu.Lock()
	defer b.putMu.Unlock()

	t := b.tail.v.Load()
	c := b.cursor.v.Load()
	if c == initialCursor {
		c = 0
	}
	if t-c == b.size-1 {
		b.reject(id)
		return false
	}

	idx := (t + 1) & b.mask
	if b.flags[idx].v.Load() != flagEmpty {
		b.reject(id)
		return false
	}

	// Publication order matters: payload, then flag, then tail. A consumer
	// that observes the new tail also observes the flag and payload.
	b.slots[idx] = id
	b.flags[idx].v.Store(flagFull)
	b.tail.v.Store(t + 1)
	return true
}

// Take claims and returns the next ID. It is lock-free and safe for any
// number of concurrent consumers.
//
// IDs observed across concurrent takes are pairwise unique but not
// necessarily in mint order: the cursor claim is atomic, the slot read is
// not, so a slow consumer can return a smaller ID after a faster one. An
// empty ring fails with the rejected-take handler's error, by default
// ErrRingExhausted.
func (b *RingBuffer) Take() (int64, error) {
	var next, t int64
	for {
		c := b.cursor.v.Load()
		t = b.tail.v.Load()
		if c == t {
			// Nothing published beyond the cursor. Ask for padding anyway:
			// the producer may simply be behind.
			b.takeRejects.Add(1)
			if b.requestRefill != nil {
				b.requestRefill()
			}
			return 0, b.rejectedTake(b)
		}
		next = c + 1
		if b.cursor.v.CompareAndSwap(c, next) {
			break
		}
	}

	if t-next < b.paddingThreshold && b.requestRefill != nil {
		b.requestRefill()
	}

	idx := next & b.mask
	if b.flags[idx].v.Load() != flagFull {
		// Unreachable under the publication order above; kept as a
		// defensive invariant check.
		b.log.Error("ring slot flag not FULL at claimed position",
			zap.Int64("position", next), zap.Int64("index", idx))
	}

	// Read the payload before releasing the slot, otherwise the producer
	// could lap the ring and overwrite it first.
	id := b.slots[idx]
	b.flags[idx].v.Store(flagEmpty)
	return id, nil
}

// Size returns the slot count.
func (b *RingBuffer) Size() int64 {
	return b.size
}

// Fill returns the number of published-but-unconsumed IDs.
func (b *RingBuffer) Fill() int64 {
	return b.tail.v.Load() - b.cursor.v.Load()
}

// Tail returns the last published producer position.
func (b *RingBuffer) Tail() int64 {
	return b.tail.v.Load()
}

// Cursor returns the last consumed position.
func (b *RingBuffer) Cursor() int64 {
	return b.cursor.v.Load()
}

// PutRejects returns how many puts found the ring full.
func (b *RingBuffer) PutRejects() int64 {
	return b.putRejects.Load()
}

// TakeRejects returns how many takes found the ring empty.
func (b *RingBuffer) TakeRejects() int64 {
	return b.takeRejects.Load()
}

func (b *RingBuffer) reject(id int64) {
	b.putRejects.Add(1)
	b.rejectedPut(b, id)
}

// defaultRejectedPut drops the surplus ID. IDs are plentiful; discarding a
// partial batch only skips sequence values within one second.
func (b *RingBuffer) defaultRejectedPut(_ *RingBuffer, id int64) {
	b.log.Debug("ring buffer full, discarding id", zap.Int64("id", id))
}

// defaultRejectedTake reports exhaustion to the failed caller.
func (b *RingBuffer) defaultRejectedTake(_ *RingBuffer) error {
	b.log.Warn("ring buffer empty, rejecting take",
		zap.Int64("tail", b.Tail()), zap.Int64("cursor", b.Cursor()))
	return ErrRingExhausted
}
