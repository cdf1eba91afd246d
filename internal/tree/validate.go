package tree

import (
	"fmt"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
)

// ValidateChains is the strict-mode companion to the tolerant path
// walker: it inspects a raw snapshot (soft-deleted nodes included) and
// reports every broken invariant instead of papering over it.
//
// Detected problems: dangling parent references, parent links that
// cross conversations, parent chains that never reach a root (cycles),
// and more than one root in the set.
func ValidateChains(nodes []models.Node) []*domain.ConsistencyError {
	byID := make(map[string]*models.Node, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	var errs []*domain.ConsistencyError
	rootCount := 0

	for i := range nodes {
		n := &nodes[i]
		if n.ParentID == nil {
			rootCount++
			continue
		}

		parent, ok := byID[*n.ParentID]
		if !ok {
			errs = append(errs, &domain.ConsistencyError{
				NodeID:  n.ID,
				Message: fmt.Sprintf("parent %s does not exist", *n.ParentID),
			})
			continue
		}
		if parent.ConversationID != n.ConversationID {
			errs = append(errs, &domain.ConsistencyError{
				NodeID:  n.ID,
				Message: fmt.Sprintf("parent %s belongs to conversation %s", parent.ID, parent.ConversationID),
			})
		}
	}

	if rootCount > 1 {
		errs = append(errs, &domain.ConsistencyError{
			Message: fmt.Sprintf("expected a single root, found %d", rootCount),
		})
	}

	// Cycle detection: follow each node's parent chain; chains longer
	// than the node count can only mean a loop.
	for i := range nodes {
		n := &nodes[i]
		hops := 0
		current := n
		for current.ParentID != nil {
			next, ok := byID[*current.ParentID]
			if !ok {
				break // dangling, already reported
			}
			current = next
			hops++
			if hops > len(nodes) {
				errs = append(errs, &domain.ConsistencyError{
					NodeID:  n.ID,
					Message: "parent chain does not terminate (cycle)",
				})
				break
			}
		}
	}

	return errs
}
