package tree

import (
	"testing"

	"arbor/internal/domain/models"
)

// buildPairedTree constructs a conversation with regenerated replies
// and a branch:
//
//	u1 (user)
//	├── r1a (assistant, older)
//	├── r1b (assistant, newer)      <- paired with u1
//	│   ├── u2 (user)
//	│   │   └── r2 (assistant)
//	│   └── u3 (user)               <- pending, no reply yet
func buildPairedTree() []models.Node {
	return []models.Node{
		testNode("u1", nil, models.RoleUser, 0),
		testNode("r1a", strPtr("u1"), models.RoleAssistant, 1),
		testNode("r1b", strPtr("u1"), models.RoleAssistant, 2),
		testNode("u2", strPtr("r1b"), models.RoleUser, 3),
		testNode("r2", strPtr("u2"), models.RoleAssistant, 4),
		testNode("u3", strPtr("r1b"), models.RoleUser, 5),
	}
}

func TestProjectTurns_PairsWithLatestReply(t *testing.T) {
	tt := ProjectTurns(NewIndex(buildPairedTree()))

	turn := tt.Turn("u1")
	if turn == nil {
		t.Fatal("expected turn for u1")
	}
	if turn.Response != "text of r1b" {
		t.Errorf("expected pairing with most recent reply r1b, got %q", turn.Response)
	}
	if turn.ResponseID == nil || *turn.ResponseID != "r1b" {
		t.Errorf("expected response id r1b, got %v", turn.ResponseID)
	}
}

func TestProjectTurns_ParentSkipsAssistantNodes(t *testing.T) {
	tt := ProjectTurns(NewIndex(buildPairedTree()))

	u2 := tt.Turn("u2")
	if u2.ParentID == nil || *u2.ParentID != "u1" {
		t.Errorf("expected u2's parent turn to be u1, got %v", u2.ParentID)
	}

	u1 := tt.Turn("u1")
	if len(u1.Children) != 2 || u1.Children[0] != "u2" || u1.Children[1] != "u3" {
		t.Errorf("expected u1 children [u2 u3], got %v", u1.Children)
	}
}

func TestProjectTurns_PendingTurn(t *testing.T) {
	tt := ProjectTurns(NewIndex(buildPairedTree()))

	u3 := tt.Turn("u3")
	if u3.Response != "" || u3.ResponseID != nil {
		t.Errorf("expected pending turn with empty response, got %q", u3.Response)
	}
}

func TestProjectTurns_Roots(t *testing.T) {
	tt := ProjectTurns(NewIndex(buildPairedTree()))
	if len(tt.Roots) != 1 || tt.Roots[0] != "u1" {
		t.Errorf("expected roots [u1], got %v", tt.Roots)
	}
	if tt.Len() != 3 {
		t.Errorf("expected 3 turns, got %d", tt.Len())
	}
}

func TestProjectTurns_EmptyTree(t *testing.T) {
	tt := ProjectTurns(NewIndex(nil))
	if tt.Len() != 0 || len(tt.Roots) != 0 {
		t.Errorf("expected empty projection, got %d turns", tt.Len())
	}
}

func TestSelection_DefaultsToLatestChild(t *testing.T) {
	tt := ProjectTurns(NewIndex(buildPairedTree()))
	sel := NewSelection()

	if got := sel.SelectedChild(tt, "u1"); got != "u3" {
		t.Errorf("expected default selection u3 (most recent), got %s", got)
	}
}

func TestSelection_SiblingNavigation(t *testing.T) {
	tt := ProjectTurns(NewIndex(buildPairedTree()))
	sel := NewSelection()

	if got := sel.PrevSibling(tt, "u3"); got != "u2" {
		t.Fatalf("expected prev sibling u2, got %s", got)
	}
	// Selection must stick across lookups.
	if got := sel.SelectedChild(tt, "u1"); got != "u2" {
		t.Errorf("expected selection pinned to u2, got %s", got)
	}
	if got := sel.PrevSibling(tt, "u2"); got != "" {
		t.Errorf("expected no sibling left of u2, got %s", got)
	}
	if got := sel.NextSibling(tt, "u2"); got != "u3" {
		t.Errorf("expected next sibling u3, got %s", got)
	}
	if got := sel.NextSibling(tt, "u3"); got != "" {
		t.Errorf("expected no sibling right of u3, got %s", got)
	}
}

func TestSelection_Select(t *testing.T) {
	tt := ProjectTurns(NewIndex(buildPairedTree()))
	sel := NewSelection()

	if !sel.Select(tt, "u1", "u2") {
		t.Fatal("expected Select to succeed")
	}
	if got := sel.SelectedChild(tt, "u1"); got != "u2" {
		t.Errorf("expected u2 selected, got %s", got)
	}
	if sel.Select(tt, "u1", "not-a-child") {
		t.Error("expected Select to fail for non-child")
	}
}
