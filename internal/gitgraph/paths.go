package gitgraph

import (
	"fmt"
	"strconv"
)

// GeneratePaths emits one drawable segment per commit→parent edge using
// the default layout. lanes[i] must correspond to commits[i], as returned
// by CalculateLanes.
func GeneratePaths(lanes []LaneAssignment, commits []Commit) []PathSegment {
	return DefaultLayout().GeneratePaths(lanes, commits)
}

// GeneratePaths emits one drawable segment per commit→parent edge. Edges
// whose parent is outside the visible window are skipped. Same-lane edges
// are straight vertical lines; cross-lane edges are cubic Bézier S-curves
// that leave and arrive vertically. A segment carries the color of the
// child commit's lane so the edge reads as part of the branch it departs
// from.
func (l Layout) GeneratePaths(lanes []LaneAssignment, commits []Commit) []PathSegment {
	index := make(map[string]int, len(commits))
	for i, c := range commits {
		index[c.Hash] = i
	}

	var segments []PathSegment
	for i, c := range commits {
		currentY := float64(i)*l.RowHeight + l.RowHeight/2
		for _, p := range c.Parents {
			parentIndex, ok := index[p]
			if !ok {
				continue
			}
			parentY := float64(parentIndex)*l.RowHeight + l.RowHeight/2

			x1 := float64(lanes[i].Lane) * l.LaneWidth
			x2 := float64(lanes[parentIndex].Lane) * l.LaneWidth

			if lanes[i].Lane == lanes[parentIndex].Lane {
				segments = append(segments, PathSegment{
					D:     fmt.Sprintf("M %s %s L %s %s", num(x1), num(currentY), num(x2), num(parentY)),
					Color: lanes[i].Color,
					Type:  "line",
				})
				continue
			}

			// Both control points sit at the same height between the
			// endpoints, giving a vertical tangent at each end.
			controlY := currentY + (parentY-currentY)*l.CurveControlRatio
			segments = append(segments, PathSegment{
				D: fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
					num(x1), num(currentY),
					num(x1), num(controlY),
					num(x2), num(controlY),
					num(x2), num(parentY)),
				Color: lanes[i].Color,
				Type:  "merge",
			})
		}
	}
	return segments
}

// num formats a coordinate without trailing zeros ("18", "18.5").
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
