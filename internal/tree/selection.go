package tree

import (
	"sync"
)

// Selection records, per parent turn, which child branch the view is
// following. Keeping this as explicit state (rather than re-querying
// "the latest child" on every render) keeps sibling navigation stable
// across re-renders.
//
// Unset entries default to the most recently created child. Safe for
// concurrent use.
type Selection struct {
	mu     sync.RWMutex
	chosen map[string]int // parent turn id -> selected child index
}

// NewSelection creates an empty selection map.
func NewSelection() *Selection {
	return &Selection{chosen: make(map[string]int)}
}

// SelectedChild returns the id of the selected child of parentID, or
// "" if the parent has no children. Out-of-range stored indexes (e.g.
// after a sibling subtree was deleted) are clamped.
func (s *Selection) SelectedChild(tt *TurnTree, parentID string) string {
	parent := tt.Turn(parentID)
	if parent == nil || len(parent.Children) == 0 {
		return ""
	}

	s.mu.RLock()
	i, ok := s.chosen[parentID]
	s.mu.RUnlock()

	if !ok || i >= len(parent.Children) {
		i = len(parent.Children) - 1 // default: most recently created
	}
	if i < 0 {
		i = 0
	}
	return parent.Children[i]
}

// Select pins the selected child of parentID to the branch containing
// childID. Returns false if childID is not a child of parentID.
func (s *Selection) Select(tt *TurnTree, parentID, childID string) bool {
	parent := tt.Turn(parentID)
	if parent == nil {
		return false
	}
	for i, id := range parent.Children {
		if id == childID {
			s.mu.Lock()
			s.chosen[parentID] = i
			s.mu.Unlock()
			return true
		}
	}
	return false
}

// NextSibling moves the selection one branch to the right of turnID
// and returns the newly selected sibling id, or "" if turnID is
// already the last sibling or has no parent.
func (s *Selection) NextSibling(tt *TurnTree, turnID string) string {
	return s.step(tt, turnID, 1)
}

// PrevSibling moves the selection one branch to the left of turnID
// and returns the newly selected sibling id, or "" if turnID is
// already the first sibling or has no parent.
func (s *Selection) PrevSibling(tt *TurnTree, turnID string) string {
	return s.step(tt, turnID, -1)
}

func (s *Selection) step(tt *TurnTree, turnID string, delta int) string {
	turn := tt.Turn(turnID)
	if turn == nil || turn.ParentID == nil {
		return ""
	}
	siblings := tt.Turn(*turn.ParentID).Children

	for i, id := range siblings {
		if id != turnID {
			continue
		}
		j := i + delta
		if j < 0 || j >= len(siblings) {
			return ""
		}
		s.mu.Lock()
		s.chosen[*turn.ParentID] = j
		s.mu.Unlock()
		return siblings[j]
	}
	return ""
}
