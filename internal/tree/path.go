package tree

// maxPathDepth bounds the parent walk so a corrupted snapshot with a
// cycle can never hang a request.
const maxPathDepth = 10000

// PathToRoot walks parent pointers from nodeID to the root and returns
// the chain of ids in root-first order, ending with nodeID.
//
// This never fails: an unknown nodeID yields nil, and a dangling
// parent reference truncates the path at the last resolvable node. UI
// navigation depends on always getting something renderable back; use
// ValidateChains to surface broken chains as errors instead.
func PathToRoot(idx *Index, nodeID string) []string {
	node := idx.Node(nodeID)
	if node == nil {
		return nil
	}

	var reversed []string
	for depth := 0; node != nil && depth < maxPathDepth; depth++ {
		reversed = append(reversed, node.ID)
		if node.ParentID == nil {
			break
		}
		node = idx.Node(*node.ParentID)
	}

	path := make([]string, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}

// FindLCA returns the index of the last position at which the two
// root-first paths agree, or -1 if they share no prefix (which only
// happens for empty paths or paths from different trees).
func FindLCA(pathA, pathB []string) int {
	lca := -1
	for i := 0; i < len(pathA) && i < len(pathB); i++ {
		if pathA[i] != pathB[i] {
			break
		}
		lca = i
	}
	return lca
}

// SwitchSteps describes how to relocate the view between two nodes:
// walk Up from the source to just below the lowest common ancestor,
// then Down from just after it to the destination. This is the basis
// for animated branch transitions and minimal re-render diffs.
type SwitchSteps struct {
	LCA  string   `json:"lca"`
	Up   []string `json:"up"`   // fromID towards the LCA, exclusive
	Down []string `json:"down"` // just after the LCA towards toID, inclusive
}

// ComputeSwitchSteps decomposes the move from fromID to toID into up
// and down legs around their LCA. Cost is O(depth), not O(tree size).
// Returns nil if either endpoint is unknown or the paths never meet.
func ComputeSwitchSteps(idx *Index, fromID, toID string) *SwitchSteps {
	fromPath := PathToRoot(idx, fromID)
	toPath := PathToRoot(idx, toID)
	k := FindLCA(fromPath, toPath)
	if k < 0 {
		return nil
	}

	steps := &SwitchSteps{LCA: fromPath[k]}

	// Up leg: reverse-ordered, from the source up to (not including)
	// the LCA.
	for i := len(fromPath) - 1; i > k; i-- {
		steps.Up = append(steps.Up, fromPath[i])
	}

	// Down leg: forward-ordered, from just after the LCA to the target.
	for i := k + 1; i < len(toPath); i++ {
		steps.Down = append(steps.Down, toPath[i])
	}

	return steps
}
