package gitgraph

import "strings"

// CalculateLanes walks a newest-first commit list once and assigns each
// commit a lane and a color. A lane stays reserved for the commit hash it
// expects next (an already-seen child's first parent) until that commit is
// processed; extra merge parents open new lanes. The input is trusted to
// be ordered the way git log emits it: a commit always appears before any
// of its ancestors in the list. Never panics; an empty list yields an
// empty, well-formed result.
func CalculateLanes(commits []Commit) GraphData {
	// activeLanes[i] holds the hash lane i is waiting for, or "" if the
	// lane is free for reuse.
	var activeLanes []string
	commitColors := make(map[string]string)

	lanes := make([]LaneAssignment, 0, len(commits))
	maxLane := 0

	for _, c := range commits {
		lane := resolveLane(&activeLanes, c.Hash)
		if lane > maxLane {
			maxLane = lane
		}

		color := resolveColor(c, lane, commitColors)
		commitColors[c.Hash] = color

		// Parents already expected by some lane become incoming edges;
		// parents outside the visible window are simply absent.
		var inLanes []int
		for _, p := range c.Parents {
			for j, expected := range activeLanes {
				if expected == p {
					inLanes = append(inLanes, j)
					break
				}
			}
		}

		if len(c.Parents) == 0 {
			// Terminal commit in this window: the lane frees up.
			activeLanes[lane] = ""
		} else {
			// First parent continues this commit's lane and inherits its
			// color unless something already claimed one.
			first := c.Parents[0]
			activeLanes[lane] = first
			if _, ok := commitColors[first]; !ok {
				commitColors[first] = color
			}

			// Each extra parent is a merged-in branch line: open a lane
			// for it unless it is already expected somewhere.
			for _, p := range c.Parents[1:] {
				if laneExpecting(activeLanes, p) >= 0 {
					continue
				}
				slot := claimLane(&activeLanes, p)
				if _, ok := commitColors[p]; !ok {
					commitColors[p] = laneColor(slot)
				}
			}
		}

		lanes = append(lanes, LaneAssignment{
			CommitHash: c.Hash,
			Lane:       lane,
			InLanes:    inLanes,
			OutLanes:   []int{lane},
			Color:      color,
		})
	}

	return GraphData{Lanes: lanes, MaxLane: maxLane, ColorMap: commitColors}
}

// resolveLane returns the lane expecting hash, or claims the lowest free
// lane (growing the vector if none is free).
func resolveLane(activeLanes *[]string, hash string) int {
	if i := laneExpecting(*activeLanes, hash); i >= 0 {
		return i
	}
	return claimLane(activeLanes, hash)
}

// laneExpecting returns the first lane waiting for hash, or -1.
func laneExpecting(activeLanes []string, hash string) int {
	for i, expected := range activeLanes {
		if expected == hash {
			return i
		}
	}
	return -1
}

// claimLane stores hash in the lowest free slot, appending when full.
func claimLane(activeLanes *[]string, hash string) int {
	for i, expected := range *activeLanes {
		if expected == "" {
			(*activeLanes)[i] = hash
			return i
		}
	}
	*activeLanes = append(*activeLanes, hash)
	return len(*activeLanes) - 1
}

// resolveColor applies the color policy, first match wins: main/master
// ref, hashed ref name, orphan, color already propagated down from a
// child, inherited first-parent color, positional palette fallback.
// Ref-based colors deliberately beat everything positional so a branch
// keeps its color even when a different commit-count window shifts its
// lane.
func resolveColor(c Commit, lane int, commitColors map[string]string) string {
	if len(c.Refs) > 0 {
		for _, ref := range c.Refs {
			if isMainRef(ref) {
				return mainColor
			}
		}
		return refColor(c.Refs[0])
	}
	if len(c.Parents) == 0 {
		return orphanColor
	}
	if propagated, ok := commitColors[c.Hash]; ok {
		return propagated
	}
	if inherited, ok := commitColors[c.Parents[0]]; ok {
		return inherited
	}
	return laneColor(lane)
}

// isMainRef reports whether a ref names the main branch, tolerating
// remote-tracking prefixes and the "HEAD -> branch" decoration.
func isMainRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	ref = strings.TrimPrefix(ref, "HEAD -> ")
	ref = strings.TrimPrefix(ref, "origin/")
	return ref == "main" || ref == "master"
}
