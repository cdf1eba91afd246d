package tree

import (
	"sort"

	"arbor/internal/domain/models"
)

// Index is an in-memory view of one conversation's node set, built
// from a store snapshot. All path, projection and layout computations
// run against an Index; nothing here touches storage.
//
// Soft-deleted nodes are excluded at build time so every consumer sees
// the same filtered tree. An Index is immutable after construction and
// safe for concurrent readers.
type Index struct {
	byID     map[string]*models.Node
	children map[string][]*models.Node
	roots    []*models.Node
}

// NewIndex builds an index over a node snapshot. Children are ordered
// by created_at (ties broken by id) so "most recently created" is
// always the last sibling.
func NewIndex(nodes []models.Node) *Index {
	idx := &Index{
		byID:     make(map[string]*models.Node, len(nodes)),
		children: make(map[string][]*models.Node),
	}

	for i := range nodes {
		if nodes[i].Deleted {
			continue
		}
		idx.byID[nodes[i].ID] = &nodes[i]
	}

	for _, n := range idx.byID {
		if n.ParentID == nil {
			idx.roots = append(idx.roots, n)
			continue
		}
		// A child whose parent is missing from the snapshot is still
		// indexed by id; it just isn't reachable as anyone's child.
		idx.children[*n.ParentID] = append(idx.children[*n.ParentID], n)
	}

	for parentID := range idx.children {
		sortNodes(idx.children[parentID])
	}
	sortNodes(idx.roots)

	return idx
}

func sortNodes(nodes []*models.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
}

// Node returns the node with the given id, or nil if absent.
func (idx *Index) Node(id string) *models.Node {
	return idx.byID[id]
}

// Children returns the direct children of a node, oldest first.
func (idx *Index) Children(id string) []*models.Node {
	return idx.children[id]
}

// Roots returns all nodes with no parent, oldest first. A well-formed
// conversation has exactly one; the index tolerates more.
func (idx *Index) Roots() []*models.Node {
	return idx.roots
}

// Len returns the number of live (non-deleted) nodes in the index.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// Descendants collects a node and its entire subtree via BFS over the
// children index, in visit order starting with the node itself. This
// is the traversal behind the cascading delete.
func (idx *Index) Descendants(nodeID string) []string {
	if idx.Node(nodeID) == nil {
		return nil
	}

	collected := []string{nodeID}
	queue := []string{nodeID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range idx.children[current] {
			collected = append(collected, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return collected
}
