package uid

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestCollector tests registration and metric emission
func TestCollector(t *testing.T) {
	gen := newTestGenerator(t)

	// Generate some activity so counters move.
	for i := 0; i < 10; i++ {
		if _, err := gen.NextID(); err != nil {
			t.Fatalf("NextID() error = %v", err)
		}
	}

	c := NewCollector(gen)
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if got := testutil.CollectAndCount(c); got != 8 {
		t.Errorf("CollectAndCount() = %d, want 8 metrics", got)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	byName := make(map[string]bool, len(families))
	for _, fam := range families {
		byName[fam.GetName()] = true
	}
	for _, name := range []string{
		"uid_minted_total",
		"uid_clock_backward_total",
		"uid_sequence_waits_total",
		"uid_worker_reassignments_total",
		"uid_ring_fill",
		"uid_ring_size",
		"uid_ring_put_rejects_total",
		"uid_ring_take_rejects_total",
	} {
		if !byName[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}
}
