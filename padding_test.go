package uid

import (
	"testing"
	"time"
)

// smallLayout keeps padding batches and rings small in tests.
var smallLayout = BitLayout{TimeBits: 33, WorkerBits: 20, SeqBits: 4}

func newTestPadding(t *testing.T, boostPower int) (*Minter, *RingBuffer, *PaddingExecutor) {
	t.Helper()
	m, err := NewMinter(MinterConfig{Layout: smallLayout, WorkerID: 2})
	if err != nil {
		t.Fatalf("NewMinter() error = %v", err)
	}
	ring, err := NewRingBuffer((smallLayout.MaxSequence()+1)<<boostPower, 50, nil)
	if err != nil {
		t.Fatalf("NewRingBuffer() error = %v", err)
	}
	e, err := NewPaddingExecutor(m, ring, 0, nil)
	if err != nil {
		t.Fatalf("NewPaddingExecutor() error = %v", err)
	}
	return m, ring, e
}

// TestPaddingBufferFillsRing tests that one cycle fills the ring to
// capacity and stops at the first rejected put.
func TestPaddingBufferFillsRing(t *testing.T) {
	_, ring, e := newTestPadding(t, 1) // 16-id batches, 32 slots

	e.PaddingBuffer()

	if got := ring.Fill(); got != ring.Size() {
		t.Errorf("Fill() after warm-up = %d, want %d", got, ring.Size())
	}
	// Two full batches fit, the third is rejected on its first put.
	if got := ring.PutRejects(); got != 1 {
		t.Errorf("PutRejects() = %d, want 1", got)
	}
}

// TestPaddingBufferUniqueAcrossCycles tests that successive cycles never
// repeat an ID.
func TestPaddingBufferUniqueAcrossCycles(t *testing.T) {
	_, ring, e := newTestPadding(t, 1)

	seen := make(map[int64]bool)
	for cycle := 0; cycle < 5; cycle++ {
		e.PaddingBuffer()
		for {
			id, err := ring.Take()
			if err != nil {
				break
			}
			if id <= 0 {
				t.Fatalf("cycle %d produced non-positive id %d", cycle, id)
			}
			if seen[id] {
				t.Fatalf("cycle %d repeated id %d", cycle, id)
			}
			seen[id] = true
		}
	}
	if len(seen) == 0 {
		t.Fatal("no ids observed")
	}
}

// TestPaddingSecondAdvances tests the batch second cursor
func TestPaddingSecondAdvances(t *testing.T) {
	_, _, e := newTestPadding(t, 1)

	before := e.PaddingSecond()
	e.PaddingBuffer()
	// 32 slots, 16-id batches: two accepted batches plus the rejected third.
	if got := e.PaddingSecond(); got != before+3 {
		t.Errorf("PaddingSecond() advanced by %d, want 3", got-before)
	}
}

// TestAsyncPaddingRefills tests the demand-driven refill loop end to end
func TestAsyncPaddingRefills(t *testing.T) {
	_, ring, e := newTestPadding(t, 1)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Shutdown()

	e.PaddingBuffer()

	// Drain far enough that a take crosses the threshold and requests an
	// asynchronous refill.
	// Momentary emptiness is fine while the producer catches up.
	drained := int(ring.Size()) - 2
	for i := 0; i < drained; {
		if _, err := ring.Take(); err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		i++
	}

	// The background worker should top the ring back up.
	deadline := time.Now().Add(2 * time.Second)
	for ring.Fill() < ring.Size()/2 {
		if time.Now().After(deadline) {
			t.Fatalf("ring not refilled, fill = %d", ring.Fill())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestPaddingExecutorShutdown tests that shutdown stops async padding
func TestPaddingExecutorShutdown(t *testing.T) {
	_, ring, e := newTestPadding(t, 1)
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	e.Shutdown()

	// Calls after shutdown are ignored rather than panicking.
	e.AsyncPadding()
	e.Shutdown()

	if got := ring.Fill(); got != 0 {
		t.Errorf("Fill() = %d, want 0 with no cycle ever run", got)
	}
}

// TestPaddingExecutorScheduleValidation tests interval validation
func TestPaddingExecutorScheduleValidation(t *testing.T) {
	m, err := NewMinter(MinterConfig{Layout: smallLayout})
	if err != nil {
		t.Fatalf("NewMinter() error = %v", err)
	}
	ring, err := NewRingBuffer(32, 50, nil)
	if err != nil {
		t.Fatalf("NewRingBuffer() error = %v", err)
	}
	if _, err := NewPaddingExecutor(m, ring, -1, nil); err == nil {
		t.Error("NewPaddingExecutor with negative interval succeeded, want error")
	}
}

// TestPeriodicPadding tests that a scheduled executor keeps the ring topped
// up without any take-driven trigger.
func TestPeriodicPadding(t *testing.T) {
	if testing.Short() {
		t.Skip("periodic padding waits on the scheduler")
	}

	m, err := NewMinter(MinterConfig{Layout: smallLayout, WorkerID: 2})
	if err != nil {
		t.Fatalf("NewMinter() error = %v", err)
	}
	ring, err := NewRingBuffer(32, 50, nil)
	if err != nil {
		t.Fatalf("NewRingBuffer() error = %v", err)
	}
	e, err := NewPaddingExecutor(m, ring, 1, nil)
	if err != nil {
		t.Fatalf("NewPaddingExecutor() error = %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Shutdown()

	deadline := time.Now().Add(3 * time.Second)
	for ring.Fill() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled padding never filled the ring")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
