// Package layout positions a turn tree as a non-overlapping 2-D
// diagram: parents above children, sibling subtrees side by side, each
// subtree given exactly the horizontal room it needs.
package layout

import (
	"arbor/internal/tree"
)

// Node is one positioned turn. X/Y locate the node's center; Width is
// the horizontal span reserved for its entire subtree.
type Node struct {
	ID       string  `json:"id"`
	Query    string  `json:"query"`
	Response string  `json:"response"`
	ParentID *string `json:"parent_id,omitempty"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Level    int     `json:"level"`
	Width    float64 `json:"width"`
}

// Engine computes diagram coordinates for turn trees.
type Engine struct {
	params *Params
}

// NewEngine creates a layout engine with the given parameters.
func NewEngine(params *Params) *Engine {
	return &Engine{params: params}
}

// Layout places every turn of the tree, with the first root centered
// at (originX, originY). An empty tree yields an empty slice. Multiple
// roots (a broken single-root invariant) are laid out side by side
// rather than crashing.
func (e *Engine) Layout(tt *tree.TurnTree, originX, originY float64) []Node {
	if tt == nil || tt.Len() == 0 {
		return []Node{}
	}

	widths := make(map[string]float64, tt.Len())
	for _, rootID := range tt.Roots {
		e.subtreeWidth(tt, rootID, widths)
	}

	out := make([]Node, 0, tt.Len())
	x := originX
	for i, rootID := range tt.Roots {
		if i > 0 {
			// Shift each extra root fully clear of the previous one.
			x += widths[tt.Roots[i-1]]/2 + e.params.MinSpacing + widths[rootID]/2
		}
		out = e.place(tt, rootID, x, originY, 0, widths, out)
	}
	return out
}

// subtreeWidth computes, bottom-up and memoized, the horizontal span a
// node's entire descendant set requires:
//
//	width(leaf) = BaseWidth
//	width(node) = max(BaseWidth, sum(child widths) + gaps)
func (e *Engine) subtreeWidth(tt *tree.TurnTree, id string, memo map[string]float64) float64 {
	if w, ok := memo[id]; ok {
		return w
	}

	children := tt.Turn(id).Children
	width := e.params.BaseWidth
	if len(children) > 0 {
		var sum float64
		for _, childID := range children {
			sum += e.subtreeWidth(tt, childID, memo)
		}
		sum += float64(len(children)-1) * e.params.MinSpacing
		if sum > width {
			width = sum
		}
	}

	memo[id] = width
	return width
}

// place positions a node at (x, y) and its children left-to-right
// beneath it. Each child is centered within its own reserved span, so
// sibling spans can never overlap.
func (e *Engine) place(tt *tree.TurnTree, id string, x, y float64, level int, widths map[string]float64, out []Node) []Node {
	turn := tt.Turn(id)

	out = append(out, Node{
		ID:       turn.ID,
		Query:    turn.Query,
		Response: turn.Response,
		ParentID: turn.ParentID,
		X:        x,
		Y:        y,
		Level:    level,
		Width:    widths[id],
	})

	children := turn.Children
	if len(children) == 0 {
		return out
	}

	var total float64
	for _, childID := range children {
		total += widths[childID]
	}
	total += float64(len(children)-1) * e.params.MinSpacing

	childY := y + e.verticalGap(level, len(children))
	cursor := x - total/2
	for _, childID := range children {
		childX := cursor + widths[childID]/2
		out = e.place(tt, childID, childX, childY, level+1, widths, out)
		cursor += widths[childID] + e.params.MinSpacing
	}
	return out
}

// verticalGap grows mildly with depth and fan-out so bushy or deep
// trees stay readable.
func (e *Engine) verticalGap(level, childCount int) float64 {
	fanout := float64(childCount) * e.params.ChildFactor
	if fanout > e.params.ChildCap {
		fanout = e.params.ChildCap
	}
	return e.params.BaseVertical + float64(level)*e.params.LevelFactor + fanout
}
