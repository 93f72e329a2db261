// Package benchutil provides latency percentile helpers for benchmark
// suites, with optional JSON output for comparing runs.
package benchutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

// Result holds latency percentile data for one benchmark run.
type Result struct {
	Name       string  `json:"name"`
	Iterations int     `json:"iterations"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MinMs      float64 `json:"min_ms"`
	MaxMs      float64 `json:"max_ms"`
	MeanMs     float64 `json:"mean_ms"`
	Timestamp  string  `json:"timestamp"`
}

// Compute calculates latency percentiles from raw durations.
func Compute(name string, durations []time.Duration) Result {
	n := len(durations)
	ms := make([]float64, n)
	var sum float64
	for i, d := range durations {
		ms[i] = float64(d.Microseconds()) / 1000.0
		sum += ms[i]
	}
	sort.Float64s(ms)

	return Result{
		Name:       name,
		Iterations: n,
		P50Ms:      ms[n*50/100],
		P95Ms:      ms[n*95/100],
		P99Ms:      ms[n*99/100],
		MinMs:      ms[0],
		MaxMs:      ms[n-1],
		MeanMs:     sum / float64(n),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Report logs the result as JSON and writes it to TASKDECK_BENCH_DIR
// when that is set.
func Report(tb testing.TB, result Result) {
	tb.Helper()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		tb.Fatalf("failed to marshal result: %v", err)
	}

	tb.Logf("BENCH_RESULT_JSON: %s", string(data))

	if dir := os.Getenv("TASKDECK_BENCH_DIR"); dir != "" {
		path := filepath.Join(dir, fmt.Sprintf("%s.json", result.Name))
		if err := os.WriteFile(path, data, 0644); err != nil {
			tb.Errorf("failed to write result to %s: %v", path, err)
		}
	}
}
