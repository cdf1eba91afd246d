package layout

import (
	"fmt"
	"testing"
	"time"

	"arbor/internal/domain/models"
	"arbor/internal/tree"
)

func mustParams(t *testing.T) *Params {
	t.Helper()
	p, err := LoadParams()
	if err != nil {
		t.Fatalf("LoadParams failed: %v", err)
	}
	return p
}

// buildUniformTree creates a user/assistant node tree whose turn
// projection has the given fan-out at every level down to the given
// turn depth.
func buildUniformTree(fanout, depth int) []models.Node {
	var nodes []models.Node
	seq := 0
	stamp := func() time.Time {
		seq++
		return time.Date(2026, 1, 1, 0, 0, 0, seq, time.UTC)
	}

	rootID := "u0"
	nodes = append(nodes, models.Node{
		ID: rootID, ConversationID: "c", Role: models.RoleUser,
		Text: "q", CreatedAt: stamp(),
	})

	frontier := []string{rootID}
	for level := 1; level < depth; level++ {
		var next []string
		for _, parent := range frontier {
			// One assistant reply per turn, fanout user branches under it.
			replyID := parent + "-r"
			parentCopy := parent
			nodes = append(nodes, models.Node{
				ID: replyID, ConversationID: "c", ParentID: &parentCopy,
				Role: models.RoleAssistant, Text: "a", CreatedAt: stamp(),
			})
			for b := 0; b < fanout; b++ {
				childID := fmt.Sprintf("%s-u%d", parent, b)
				replyCopy := replyID
				nodes = append(nodes, models.Node{
					ID: childID, ConversationID: "c", ParentID: &replyCopy,
					Role: models.RoleUser, Text: "q", CreatedAt: stamp(),
				})
				next = append(next, childID)
			}
		}
		frontier = next
	}
	return nodes
}

func TestLayout_EmptyTree(t *testing.T) {
	engine := NewEngine(mustParams(t))
	got := engine.Layout(tree.ProjectTurns(tree.NewIndex(nil)), 0, 0)
	if len(got) != 0 {
		t.Errorf("expected empty layout, got %d nodes", len(got))
	}
}

func TestLayout_SingleNode(t *testing.T) {
	params := mustParams(t)
	engine := NewEngine(params)

	tt := tree.ProjectTurns(tree.NewIndex(buildUniformTree(1, 1)))
	got := engine.Layout(tt, 100, 40)

	if len(got) != 1 {
		t.Fatalf("expected 1 node, got %d", len(got))
	}
	if got[0].X != 100 || got[0].Y != 40 || got[0].Level != 0 {
		t.Errorf("unexpected placement %+v", got[0])
	}
	if got[0].Width != params.BaseWidth {
		t.Errorf("leaf width should be BaseWidth, got %v", got[0].Width)
	}
}

func TestLayout_NoOverlap(t *testing.T) {
	params := mustParams(t)
	engine := NewEngine(params)

	cases := []struct{ fanout, depth int }{
		{1, 1}, {1, 5}, {2, 5}, {5, 3}, {20, 2}, {1, 20},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("fanout%d_depth%d", tc.fanout, tc.depth), func(t *testing.T) {
			tt := tree.ProjectTurns(tree.NewIndex(buildUniformTree(tc.fanout, tc.depth)))
			nodes := engine.Layout(tt, 0, 0)
			if len(nodes) != tt.Len() {
				t.Fatalf("expected %d placed nodes, got %d", tt.Len(), len(nodes))
			}

			byID := make(map[string]Node, len(nodes))
			for _, n := range nodes {
				byID[n.ID] = n
			}

			for _, n := range nodes {
				turn := tt.Turn(n.ID)
				// Parent sits above children.
				for _, childID := range turn.Children {
					child := byID[childID]
					if child.Y <= n.Y {
						t.Errorf("child %s (y=%v) not below parent %s (y=%v)", childID, child.Y, n.ID, n.Y)
					}
					if child.Level != n.Level+1 {
						t.Errorf("child %s level %d, parent level %d", childID, child.Level, n.Level)
					}
				}
				// Sibling subtree spans are disjoint.
				for i := 0; i+1 < len(turn.Children); i++ {
					left := byID[turn.Children[i]]
					right := byID[turn.Children[i+1]]
					leftEdge := left.X + left.Width/2
					rightEdge := right.X - right.Width/2
					if leftEdge > rightEdge {
						t.Errorf("sibling spans overlap under %s: [%v] vs [%v]", n.ID, leftEdge, rightEdge)
					}
				}
			}
		})
	}
}

func TestLayout_WiderSubtreeGetsMoreRoom(t *testing.T) {
	params := mustParams(t)
	engine := NewEngine(params)

	// Root with two branches: one leaf, one with 3 children of its own.
	nodes := buildUniformTree(2, 2)
	// Grow the second branch.
	second := "u0-u1"
	reply := second + "-r"
	secondCopy := second
	nodes = append(nodes, models.Node{
		ID: reply, ConversationID: "c", ParentID: &secondCopy,
		Role: models.RoleAssistant, Text: "a",
		CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	for i := 0; i < 3; i++ {
		replyCopy := reply
		nodes = append(nodes, models.Node{
			ID: fmt.Sprintf("%s-u%d", second, i), ConversationID: "c", ParentID: &replyCopy,
			Role: models.RoleUser, Text: "q",
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, i+1, time.UTC),
		})
	}

	tt := tree.ProjectTurns(tree.NewIndex(nodes))
	placed := engine.Layout(tt, 0, 0)

	byID := make(map[string]Node)
	for _, n := range placed {
		byID[n.ID] = n
	}

	leafBranch := byID["u0-u0"]
	bushyBranch := byID[second]
	if bushyBranch.Width <= leafBranch.Width {
		t.Errorf("expected bushy branch to reserve more room: %v vs %v", bushyBranch.Width, leafBranch.Width)
	}

	wantBushy := 3*params.BaseWidth + 2*params.MinSpacing
	if bushyBranch.Width != wantBushy {
		t.Errorf("expected bushy width %v, got %v", wantBushy, bushyBranch.Width)
	}
}

func TestLayout_MultipleRootsSideBySide(t *testing.T) {
	engine := NewEngine(mustParams(t))

	// Two disconnected roots: invariant violation the layout must survive.
	nodes := []models.Node{
		{ID: "r1", ConversationID: "c", Role: models.RoleUser, Text: "q", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 1, time.UTC)},
		{ID: "r2", ConversationID: "c", Role: models.RoleUser, Text: "q", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 2, time.UTC)},
	}
	placed := engine.Layout(tree.ProjectTurns(tree.NewIndex(nodes)), 0, 0)
	if len(placed) != 2 {
		t.Fatalf("expected 2 roots placed, got %d", len(placed))
	}
	if placed[0].X == placed[1].X {
		t.Error("expected roots laid out side by side")
	}
	if placed[0].Y != placed[1].Y {
		t.Error("expected roots on the same row")
	}
}

func TestVerticalGap_GrowsWithDepthAndFanout(t *testing.T) {
	params := mustParams(t)
	engine := NewEngine(params)

	if engine.verticalGap(5, 1) <= engine.verticalGap(0, 1) {
		t.Error("gap should grow with depth")
	}
	if engine.verticalGap(0, 4) <= engine.verticalGap(0, 1) {
		t.Error("gap should grow with fan-out")
	}
	// Fan-out contribution is capped.
	if engine.verticalGap(0, 1000) != params.BaseVertical+params.ChildCap {
		t.Errorf("fan-out contribution should cap at %v", params.ChildCap)
	}
}
