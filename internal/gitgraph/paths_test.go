package gitgraph

import (
	"strings"
	"testing"
)

func TestGeneratePaths_Empty(t *testing.T) {
	if segs := GeneratePaths(nil, nil); len(segs) != 0 {
		t.Errorf("expected no segments, got %d", len(segs))
	}
}

func TestGeneratePaths_StraightLine(t *testing.T) {
	commits := []Commit{
		commit("b", []string{"a"}),
		commit("a", nil),
	}
	data := CalculateLanes(commits)

	segs := DefaultLayout().GeneratePaths(data.Lanes, commits)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}

	seg := segs[0]
	if seg.Type != "line" {
		t.Errorf("expected type line, got %s", seg.Type)
	}
	// Row height 36: child centered at 18, parent at 54, both on x=0.
	if seg.D != "M 0 18 L 0 54" {
		t.Errorf("unexpected path data: %q", seg.D)
	}
	if seg.Color != data.Lanes[0].Color {
		t.Errorf("expected child color %s, got %s", data.Lanes[0].Color, seg.Color)
	}
}

func TestGeneratePaths_MergeCurve(t *testing.T) {
	commits := []Commit{
		commit("d", []string{"b", "c"}),
		commit("c", []string{"a"}),
		commit("b", []string{"a"}),
		commit("a", nil),
	}
	data := CalculateLanes(commits)

	segs := DefaultLayout().GeneratePaths(data.Lanes, commits)

	var merge *PathSegment
	for i := range segs {
		if segs[i].Type == "merge" && strings.HasPrefix(segs[i].D, "M 0 ") {
			merge = &segs[i]
			break
		}
	}
	if merge == nil {
		t.Fatal("no merge segment starting from lane 0")
	}

	// d (row 0, lane 0) → c (row 1, lane 1): control points halfway in y,
	// anchored at each endpoint's x.
	want := "M 0 18 C 0 36, 16 36, 16 54"
	if merge.D != want {
		t.Errorf("expected %q, got %q", want, merge.D)
	}
	if !strings.Contains(merge.D, "C") {
		t.Error("merge path must contain a cubic curve command")
	}
	if merge.Color != data.Lanes[0].Color {
		t.Errorf("merge edge should carry the child color %s, got %s", data.Lanes[0].Color, merge.Color)
	}
}

func TestGeneratePaths_SkipsMissingParents(t *testing.T) {
	commits := []Commit{
		commit("tip", []string{"outside-window"}),
	}
	data := CalculateLanes(commits)

	if segs := GeneratePaths(data.Lanes, commits); len(segs) != 0 {
		t.Errorf("expected no segments for truncated parent, got %d", len(segs))
	}
}

func TestGeneratePaths_CustomLayout(t *testing.T) {
	commits := []Commit{
		commit("b", []string{"a"}),
		commit("a", nil),
	}
	data := CalculateLanes(commits)

	layout := Layout{LaneWidth: 10, RowHeight: 20, DotRadius: 3, CurveControlRatio: 0.25}
	segs := layout.GeneratePaths(data.Lanes, commits)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].D != "M 0 10 L 0 30" {
		t.Errorf("unexpected path data: %q", segs[0].D)
	}
}

func TestGeneratePaths_CurveControlRatio(t *testing.T) {
	// Cross-lane edge with ratio 0.25: control y sits a quarter of the
	// way from child to parent.
	commits := []Commit{
		commit("c", []string{"a"}),
		commit("b", []string{"a"}),
		commit("a", nil),
	}
	data := CalculateLanes(commits)

	layout := Layout{LaneWidth: 10, RowHeight: 20, CurveControlRatio: 0.25}
	segs := layout.GeneratePaths(data.Lanes, commits)

	// b (row 1, lane 1) → a (row 2, lane 0): y 30 → 50, control y 35.
	var got string
	for _, seg := range segs {
		if seg.Type == "merge" {
			got = seg.D
		}
	}
	want := "M 10 30 C 10 35, 0 35, 0 50"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
