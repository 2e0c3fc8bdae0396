package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry_RuntimeCollectors(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	n, err := testutil.GatherAndCount(reg, "go_goroutines")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if n != 1 {
		t.Errorf("go_goroutines series = %d, want 1", n)
	}
}
