package contracts

import "github.com/kabuto-png/taskdeck/internal/gitgraph"

// CommitGraphResponse represents the API response for
// GET /api/repos/{repoName}/commit-graph. It bundles the parsed commits
// with the precomputed layout so the frontend renderer only draws.
type CommitGraphResponse struct {
	Repo     string                    `json:"repo"`
	Commits  []gitgraph.Commit         `json:"commits"`
	Lanes    []gitgraph.LaneAssignment `json:"lanes"`
	Paths    []gitgraph.PathSegment    `json:"paths"`
	MaxLane  int                       `json:"max_lane"`
	ColorMap map[string]string         `json:"color_map"`
	Branches map[string]GraphBranch    `json:"branches"`
}

// GraphBranch represents branch metadata in the graph response.
type GraphBranch struct {
	Head    string   `json:"head"`
	IsMain  bool     `json:"is_main"`
	TaskIDs []string `json:"task_ids"`
}
