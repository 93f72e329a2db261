// Package gitgraph computes the visual layout of a git commit graph:
// a horizontal lane per commit, a stable color per branch line, and the
// SVG path geometry connecting commits to their parents. It consumes the
// ordered commit list produced by git log (newest first) and produces
// plain data for an SVG renderer; it runs no git commands itself.
package gitgraph

// Commit is a single parsed commit from git log, newest-first ordered.
type Commit struct {
	Hash      string   `json:"hash"`
	ShortHash string   `json:"short_hash"`
	Message   string   `json:"message"`
	Author    string   `json:"author"`
	Date      string   `json:"date"`
	Parents   []string `json:"parents"`
	Refs      []string `json:"refs"`
	IsLocal   bool     `json:"is_local,omitempty"`
	IsMerge   bool     `json:"is_merge,omitempty"`
}

// LaneAssignment is the computed layout slot for one commit. Lanes are
// dense non-negative integers; freed lanes are reused lowest-first.
type LaneAssignment struct {
	CommitHash string `json:"commit_hash"`
	Lane       int    `json:"lane"`
	// InLanes holds the lanes of this commit's parents that are present
	// in the visible window.
	InLanes []int `json:"in_lanes"`
	// OutLanes is currently always [Lane]; kept for future fan-out.
	OutLanes []int  `json:"out_lanes"`
	Color    string `json:"color"`
}

// PathSegment is one drawable commit→parent edge.
type PathSegment struct {
	// D is SVG path data: "M x y L x y" for a same-lane edge,
	// "M x y C cx1 cy1, cx2 cy2, x2 y2" for a cross-lane edge.
	D     string `json:"d"`
	Color string `json:"color"`
	// Type is "line" or "merge"; "branch" is reserved and not produced.
	Type string `json:"type"`
}

// GraphData is the result of a lane calculation, one assignment per
// input commit in input order.
type GraphData struct {
	Lanes    []LaneAssignment  `json:"lanes"`
	MaxLane  int               `json:"max_lane"`
	ColorMap map[string]string `json:"color_map"`
}

// Layout holds the geometric constants used by path generation. The
// values are purely visual; renderers may supply their own.
type Layout struct {
	LaneWidth         float64
	RowHeight         float64
	DotRadius         float64
	CurveControlRatio float64
}

// DefaultLayout matches the dashboard's commit graph renderer.
func DefaultLayout() Layout {
	return Layout{
		LaneWidth:         16,
		RowHeight:         36,
		DotRadius:         4,
		CurveControlRatio: 0.5,
	}
}
