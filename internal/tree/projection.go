package tree

import (
	"sort"

	"arbor/internal/domain/models"
)

// TurnTree is the chat-pair projection of a node tree: each user node
// folded together with its chosen assistant reply. Layout and the UI
// consume turns, not raw nodes.
type TurnTree struct {
	Turns map[string]*models.Turn
	Roots []string // root turn ids, oldest first
}

// Turn returns the turn with the given id (the underlying user node
// id), or nil.
func (t *TurnTree) Turn(id string) *models.Turn {
	return t.Turns[id]
}

// Len returns the number of turns in the tree.
func (t *TurnTree) Len() int {
	return len(t.Turns)
}

// ProjectTurns folds the node tree into turn nodes. Each user node
// becomes a turn; its response is the text of the most-recently-created
// assistant child (regeneration keeps older siblings in storage, the
// projection shows the latest). A user node with no assistant child is
// a pending turn with an empty response.
//
// A turn's parent is the nearest ancestor user node, skipping over the
// assistant and system nodes between them.
func ProjectTurns(idx *Index) *TurnTree {
	tt := &TurnTree{Turns: make(map[string]*models.Turn)}

	for id, n := range idx.byID {
		if n.Role != models.RoleUser {
			continue
		}

		turn := &models.Turn{
			ID:        id,
			Query:     n.Text,
			CreatedAt: n.CreatedAt,
			Children:  []string{},
		}

		// Children are sorted oldest-first, so the last assistant
		// child is the most recently created one.
		for _, child := range idx.Children(id) {
			if child.Role == models.RoleAssistant {
				responseID := child.ID
				turn.Response = child.Text
				turn.ResponseID = &responseID
			}
		}

		if parent := nearestUserAncestor(idx, n); parent != nil {
			parentID := parent.ID
			turn.ParentID = &parentID
		}

		tt.Turns[id] = turn
	}

	// Wire up child lists and roots from the computed parents.
	for _, turn := range tt.Turns {
		if turn.ParentID == nil {
			tt.Roots = append(tt.Roots, turn.ID)
			continue
		}
		parent := tt.Turns[*turn.ParentID]
		parent.Children = append(parent.Children, turn.ID)
	}

	for _, turn := range tt.Turns {
		sortTurnIDs(tt, turn.Children)
	}
	sortTurnIDs(tt, tt.Roots)

	return tt
}

// nearestUserAncestor walks parent pointers from a user node until it
// hits another user node. Truncation on a dangling reference means the
// turn simply becomes a root, mirroring the tolerant path walker.
func nearestUserAncestor(idx *Index, n *models.Node) *models.Node {
	current := n
	for depth := 0; depth < maxPathDepth; depth++ {
		if current.ParentID == nil {
			return nil
		}
		parent := idx.Node(*current.ParentID)
		if parent == nil {
			return nil
		}
		if parent.Role == models.RoleUser {
			return parent
		}
		current = parent
	}
	return nil
}

func sortTurnIDs(tt *TurnTree, ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := tt.Turns[ids[i]], tt.Turns[ids[j]]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
