package tree

import (
	"testing"
	"time"

	"arbor/internal/domain/models"
)

// testNode builds a node with a creation time offset so sibling order
// is deterministic.
func testNode(id string, parentID *string, role string, minute int) models.Node {
	return models.Node{
		ID:             id,
		ConversationID: "conv-1",
		ParentID:       parentID,
		Role:           role,
		Text:           "text of " + id,
		CreatedAt:      time.Date(2026, 1, 1, 10, minute, 0, 0, time.UTC),
	}
}

func strPtr(s string) *string { return &s }

// buildSampleTree constructs:
//
//	root
//	├── a1
//	│   ├── b1
//	│   └── b2
//	│       └── c1
//	└── a2
func buildSampleTree() []models.Node {
	return []models.Node{
		testNode("root", nil, models.RoleUser, 0),
		testNode("a1", strPtr("root"), models.RoleAssistant, 1),
		testNode("a2", strPtr("root"), models.RoleAssistant, 2),
		testNode("b1", strPtr("a1"), models.RoleUser, 3),
		testNode("b2", strPtr("a1"), models.RoleUser, 4),
		testNode("c1", strPtr("b2"), models.RoleAssistant, 5),
	}
}

func TestPathToRoot(t *testing.T) {
	idx := NewIndex(buildSampleTree())

	tests := []struct {
		name   string
		nodeID string
		want   []string
	}{
		{"leaf", "c1", []string{"root", "a1", "b2", "c1"}},
		{"interior", "a1", []string{"root", "a1"}},
		{"root itself", "root", []string{"root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathToRoot(idx, tt.nodeID)
			if len(got) != len(tt.want) {
				t.Fatalf("expected path %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestPathToRoot_ParentChainProperty(t *testing.T) {
	nodes := buildSampleTree()
	idx := NewIndex(nodes)

	// For every node: path is root-first, ends with the node, and each
	// consecutive pair is a parent/child edge.
	for _, n := range nodes {
		path := PathToRoot(idx, n.ID)
		if len(path) == 0 {
			t.Fatalf("empty path for %s", n.ID)
		}
		if path[len(path)-1] != n.ID {
			t.Errorf("path for %s does not end with it: %v", n.ID, path)
		}
		if idx.Node(path[0]).ParentID != nil {
			t.Errorf("path for %s does not start at a root: %v", n.ID, path)
		}
		for i := 0; i+1 < len(path); i++ {
			child := idx.Node(path[i+1])
			if child.ParentID == nil || *child.ParentID != path[i] {
				t.Errorf("path for %s: %s is not the parent of %s", n.ID, path[i], path[i+1])
			}
		}
	}
}

func TestPathToRoot_UnknownNode(t *testing.T) {
	idx := NewIndex(buildSampleTree())
	if got := PathToRoot(idx, "nope"); got != nil {
		t.Errorf("expected nil path for unknown node, got %v", got)
	}
}

func TestPathToRoot_DanglingParentTruncates(t *testing.T) {
	nodes := []models.Node{
		testNode("orphan", strPtr("missing"), models.RoleUser, 0),
		testNode("child", strPtr("orphan"), models.RoleAssistant, 1),
	}
	idx := NewIndex(nodes)

	// Must not panic; must return the resolvable suffix.
	got := PathToRoot(idx, "child")
	want := []string{"orphan", "child"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected truncated path %v, got %v", want, got)
	}
}

func TestPathToRoot_ExcludesSoftDeleted(t *testing.T) {
	nodes := buildSampleTree()
	for i := range nodes {
		if nodes[i].ID == "c1" {
			nodes[i].Deleted = true
		}
	}
	idx := NewIndex(nodes)

	if got := PathToRoot(idx, "c1"); got != nil {
		t.Errorf("soft-deleted node should not resolve, got %v", got)
	}
}

func TestFindLCA(t *testing.T) {
	idx := NewIndex(buildSampleTree())

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"siblings", "b1", "b2", 1},             // share root, a1
		{"different subtrees", "b1", "a2", 0},   // share only root
		{"ancestor descendant", "a1", "c1", 1},  // a1 on c1's path
		{"same node", "c1", "c1", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pathA := PathToRoot(idx, tt.a)
			pathB := PathToRoot(idx, tt.b)
			k := FindLCA(pathA, pathB)
			if k != tt.want {
				t.Fatalf("expected LCA index %d, got %d", tt.want, k)
			}
			if pathA[k] != pathB[k] {
				t.Errorf("paths disagree at LCA index: %s vs %s", pathA[k], pathB[k])
			}
			if k+1 < len(pathA) && k+1 < len(pathB) && pathA[k+1] == pathB[k+1] {
				t.Errorf("LCA index %d is not the last common position", k)
			}
		})
	}
}

func TestFindLCA_EmptyPaths(t *testing.T) {
	if got := FindLCA(nil, nil); got != -1 {
		t.Errorf("expected -1 for empty paths, got %d", got)
	}
	if got := FindLCA([]string{"x"}, nil); got != -1 {
		t.Errorf("expected -1 when one path is empty, got %d", got)
	}
}

func TestComputeSwitchSteps(t *testing.T) {
	idx := NewIndex(buildSampleTree())

	steps := ComputeSwitchSteps(idx, "b1", "c1")
	if steps == nil {
		t.Fatal("expected steps, got nil")
	}
	if steps.LCA != "a1" {
		t.Errorf("expected LCA a1, got %s", steps.LCA)
	}
	if len(steps.Up) != 1 || steps.Up[0] != "b1" {
		t.Errorf("expected up [b1], got %v", steps.Up)
	}
	if len(steps.Down) != 2 || steps.Down[0] != "b2" || steps.Down[1] != "c1" {
		t.Errorf("expected down [b2 c1], got %v", steps.Down)
	}
}

func TestComputeSwitchSteps_RoundTrip(t *testing.T) {
	nodes := buildSampleTree()
	idx := NewIndex(nodes)

	pairs := [][2]string{
		{"b1", "c1"}, {"c1", "b1"}, {"a2", "b2"}, {"root", "c1"}, {"c1", "root"},
	}

	for _, pair := range pairs {
		from, to := pair[0], pair[1]
		steps := ComputeSwitchSteps(idx, from, to)
		if steps == nil {
			t.Fatalf("nil steps for %s -> %s", from, to)
		}

		// Walk the decomposition: visit up, then LCA, then down. The
		// cursor must end at the destination, passing the LCA once.
		cursor := from
		lcaVisits := 0
		for _, id := range steps.Up {
			if id != cursor {
				t.Fatalf("%s -> %s: up leg expected cursor %s, got %s", from, to, cursor, id)
			}
			parent := idx.Node(id).ParentID
			if parent == nil {
				t.Fatalf("%s -> %s: walked above the root", from, to)
			}
			cursor = *parent
		}
		if cursor == steps.LCA {
			lcaVisits++
		}
		for _, id := range steps.Down {
			child := idx.Node(id)
			if child.ParentID == nil || *child.ParentID != cursor {
				t.Fatalf("%s -> %s: down step %s is not a child of %s", from, to, id, cursor)
			}
			cursor = id
		}
		if cursor != to {
			t.Errorf("%s -> %s: walk ended at %s", from, to, cursor)
		}
		if lcaVisits != 1 {
			t.Errorf("%s -> %s: LCA visited %d times", from, to, lcaVisits)
		}
	}
}

func TestComputeSwitchSteps_SameNode(t *testing.T) {
	idx := NewIndex(buildSampleTree())
	steps := ComputeSwitchSteps(idx, "b2", "b2")
	if steps == nil {
		t.Fatal("expected steps for identity switch")
	}
	if steps.LCA != "b2" || len(steps.Up) != 0 || len(steps.Down) != 0 {
		t.Errorf("identity switch should be empty, got %+v", steps)
	}
}

func TestDescendants(t *testing.T) {
	idx := NewIndex(buildSampleTree())

	got := idx.Descendants("a1")
	want := map[string]bool{"a1": true, "b1": true, "b2": true, "c1": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d descendants, got %v", len(want), got)
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("unexpected descendant %s", id)
		}
	}
	if got[0] != "a1" {
		t.Errorf("expected traversal to start at a1, got %s", got[0])
	}
}

func TestValidateChains(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		if errs := ValidateChains(buildSampleTree()); len(errs) != 0 {
			t.Errorf("expected no errors, got %v", errs)
		}
	})

	t.Run("dangling parent", func(t *testing.T) {
		nodes := append(buildSampleTree(), testNode("stray", strPtr("ghost"), models.RoleUser, 9))
		errs := ValidateChains(nodes)
		if len(errs) == 0 {
			t.Fatal("expected a consistency error")
		}
		if errs[0].NodeID != "stray" {
			t.Errorf("expected error on stray, got %+v", errs[0])
		}
	})

	t.Run("multiple roots", func(t *testing.T) {
		nodes := append(buildSampleTree(), testNode("root2", nil, models.RoleUser, 9))
		if errs := ValidateChains(nodes); len(errs) == 0 {
			t.Error("expected a multiple-root error")
		}
	})

	t.Run("cycle", func(t *testing.T) {
		nodes := []models.Node{
			testNode("x", strPtr("y"), models.RoleUser, 0),
			testNode("y", strPtr("x"), models.RoleAssistant, 1),
		}
		if errs := ValidateChains(nodes); len(errs) == 0 {
			t.Error("expected a cycle error")
		}
	})
}
