package benchutil

import (
	"testing"
	"time"
)

func TestCompute(t *testing.T) {
	durations := make([]time.Duration, 100)
	for i := range durations {
		durations[i] = time.Duration(i+1) * time.Millisecond
	}

	result := Compute("layout", durations)

	if result.Iterations != 100 {
		t.Errorf("iterations = %d, want 100", result.Iterations)
	}
	if result.MinMs != 1 {
		t.Errorf("min = %v, want 1", result.MinMs)
	}
	if result.MaxMs != 100 {
		t.Errorf("max = %v, want 100", result.MaxMs)
	}
	if result.P50Ms < 50 || result.P50Ms > 52 {
		t.Errorf("p50 = %v, want ~51", result.P50Ms)
	}
	if result.P99Ms < 99 {
		t.Errorf("p99 = %v, want >= 99", result.P99Ms)
	}
	if result.MeanMs < 50 || result.MeanMs > 51 {
		t.Errorf("mean = %v, want 50.5", result.MeanMs)
	}
}
