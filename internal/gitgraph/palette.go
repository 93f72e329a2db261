package gitgraph

// branchPalette is the rotating set of branch line colors. Assignment is
// cosmetic; two branches may share a color.
var branchPalette = []string{
	"#e879f9", // fuchsia
	"#34d399", // emerald
	"#fbbf24", // amber
	"#60a5fa", // light blue
	"#f87171", // red
	"#a78bfa", // violet
	"#4ade80", // green
	"#fb923c", // orange
	"#22d3ee", // cyan
	"#f472b6", // pink
}

const (
	// mainColor is reserved for commits carrying a main/master ref.
	mainColor = "#3b82f6"
	// orphanColor marks commits with no refs and no parents.
	orphanColor = "#9ca3af"
)

// refColor maps a branch/tag name to a palette color using a polynomial
// rolling hash (h = h*31 + byte) over the name's UTF-8 bytes. The hash is
// deterministic so a branch keeps its color across renders regardless of
// which lane it lands on.
func refColor(name string) string {
	var h int32
	for i := 0; i < len(name); i++ {
		h = h*31 + int32(name[i])
	}
	idx := int(h) % len(branchPalette)
	if idx < 0 {
		idx = -idx
	}
	return branchPalette[idx]
}

// laneColor is the positional fallback when nothing better is known.
func laneColor(lane int) string {
	return branchPalette[lane%len(branchPalette)]
}
