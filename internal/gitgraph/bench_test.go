package gitgraph

import (
	"fmt"
	"testing"
	"time"

	"github.com/kabuto-png/taskdeck/internal/benchutil"
)

// syntheticHistory builds a linear history with a feature branch merged
// every tenth commit, newest first.
func syntheticHistory(n int) []Commit {
	hash := func(i int) string { return fmt.Sprintf("%040d", i) }

	commits := make([]Commit, 0, n)
	for i := n - 1; i >= 0; i-- {
		c := Commit{
			Hash:      hash(i),
			ShortHash: hash(i)[:8],
			Message:   fmt.Sprintf("commit %d", i),
		}
		if i > 0 {
			c.Parents = []string{hash(i - 1)}
		}
		if i%10 == 0 && i > 0 {
			c.Parents = append(c.Parents, hash(i-1)+"f")
			c.IsMerge = true
			commits = append(commits, c)
			commits = append(commits, Commit{
				Hash:      hash(i-1) + "f",
				ShortHash: hash(i - 1)[:7] + "f",
				Message:   fmt.Sprintf("feature %d", i),
				Parents:   []string{hash(i - 1)},
				Refs:      []string{fmt.Sprintf("feature/f%d", i)},
			})
			continue
		}
		commits = append(commits, c)
	}
	return commits
}

func BenchmarkLayout(b *testing.B) {
	commits := syntheticHistory(200)
	durations := make([]time.Duration, 0, b.N)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		start := time.Now()
		graph := CalculateLanes(commits)
		GeneratePaths(graph.Lanes, commits)
		durations = append(durations, time.Since(start))
	}
	b.StopTimer()

	if len(durations) >= 100 {
		benchutil.Report(b, benchutil.Compute("layout_200_commits", durations))
	}
}
