package uid

import (
	"testing"
)

// FuzzAllocateParseRoundTrip verifies that any in-range triple survives a
// pack/unpack cycle under several layouts.
func FuzzAllocateParseRoundTrip(f *testing.F) {
	f.Add(int64(0), int64(0), int64(0))
	f.Add(int64(1), int64(0), int64(0))
	f.Add(int64(12345), int64(42), int64(7))
	f.Add(int64(1)<<33-1, int64(1)<<20-1, int64(1023))

	epoch, err := ParseEpochPoint("2024-01-01")
	if err != nil {
		f.Fatal(err)
	}
	layouts := []BitLayout{LayoutDefault, LayoutCompact}

	f.Fuzz(func(t *testing.T, delta, worker, seq int64) {
		for _, l := range layouts {
			d := delta & l.MaxDeltaSeconds()
			w := worker & l.MaxWorkerID()
			s := seq & l.MaxSequence()

			id := l.Allocate(d, w, s)
			if id < 0 {
				t.Fatalf("Allocate(%d,%d,%d) under %v = %d, sign bit set", d, w, s, l, id)
			}
			if id == 0 {
				// All-zero triple; Parse reports "not an id" by contract.
				continue
			}
			c := l.Parse(id, epoch)
			if c == nil {
				t.Fatalf("Parse(%d) under %v returned nil", id, l)
			}
			if c.DeltaSeconds != d || c.WorkerID != w || c.Sequence != s {
				t.Fatalf("round trip under %v: in (%d,%d,%d), out (%d,%d,%d)",
					l, d, w, s, c.DeltaSeconds, c.WorkerID, c.Sequence)
			}
		}
	})
}
