package uid

import (
	"context"
	"testing"
)

// TestTruncateWorkerID tests the high-bit fold
func TestTruncateWorkerID(t *testing.T) {
	tests := []struct {
		name string
		raw  int64
		bits int
		want int64
	}{
		{"In range", 5, 20, 5},
		{"Zero", 0, 20, 0},
		{"Exactly max", (1 << 20) - 1, 20, (1 << 20) - 1},
		{"One past max", 1 << 20, 20, 0},
		{"High bits folded", 1<<40 | 5, 20, 5},
		{"Negative folds non-negative", -1, 20, (1 << 20) - 1},
		{"48-bit host value", 0x0A0000FF<<16 | 8080, 20, (0x0A0000FF<<16 | 8080) & ((1 << 20) - 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWorkerID(tt.raw, tt.bits)
			if got != tt.want {
				t.Errorf("TruncateWorkerID(%d, %d) = %d, want %d", tt.raw, tt.bits, got, tt.want)
			}
			if got < 0 {
				t.Errorf("TruncateWorkerID(%d, %d) = %d, want non-negative", tt.raw, tt.bits, got)
			}
		})
	}
}

// TestHostWorkerIDSource tests the IPv4+port derivation
func TestHostWorkerIDSource(t *testing.T) {
	src := &HostWorkerIDSource{Port: 8080}
	raw, err := src.AssignWorkerID(context.Background())
	if err != nil {
		t.Fatalf("AssignWorkerID() error = %v", err)
	}
	if raw < 0 {
		t.Errorf("AssignWorkerID() = %d, want non-negative", raw)
	}
	if raw > 0 {
		// The low 16 bits carry the port when an address was found.
		if got := raw & 0xFFFF; got != 8080 {
			t.Errorf("port bits = %d, want 8080", got)
		}
	}

	// The derived value must fold into any worker width.
	for _, bits := range []int{10, 20, 22} {
		folded := TruncateWorkerID(raw, bits)
		if folded < 0 || folded > (1<<bits)-1 {
			t.Errorf("folded worker id %d out of %d-bit range", folded, bits)
		}
	}
}

// TestHostWorkerIDSourceDistinctPorts tests that instances on one host
// differ by port.
func TestHostWorkerIDSourceDistinctPorts(t *testing.T) {
	a, err := (&HostWorkerIDSource{Port: 8080}).AssignWorkerID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := (&HostWorkerIDSource{Port: 8081}).AssignWorkerID(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a != 0 && a == b {
		t.Errorf("same worker id %d for different ports", a)
	}
}

// TestWorkerIDSourceFunc tests the function adapter
func TestWorkerIDSourceFunc(t *testing.T) {
	calls := 0
	src := WorkerIDSourceFunc(func(context.Context) (int64, error) {
		calls++
		return int64(calls * 10), nil
	})

	for want := int64(10); want <= 30; want += 10 {
		got, err := src.AssignWorkerID(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("AssignWorkerID() = %d, want %d", got, want)
		}
	}
}
