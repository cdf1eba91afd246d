package repositories

import (
	"context"

	"arbor/internal/domain/models"
)

// NodeRepository defines the store adapter contract for node access.
// The tree engine never keeps a long-lived in-memory tree: it fetches
// a snapshot through this interface and computes over it.
type NodeRepository interface {
	// GetNodesByConversation retrieves every node of a conversation,
	// including soft-deleted ones, ordered by created_at then id.
	// Returns empty slice if the conversation has no nodes.
	GetNodesByConversation(ctx context.Context, conversationID string) ([]models.Node, error)

	// GetNode retrieves a node by ID
	// Returns domain.ErrNotFound if not found
	GetNode(ctx context.Context, nodeID string) (*models.Node, error)

	// GetNodePath retrieves the chain from a node up to its root,
	// returned root-first. Truncates on a dangling parent reference
	// rather than failing.
	GetNodePath(ctx context.Context, nodeID string) ([]models.Node, error)

	// GetChildren retrieves the direct children of a node, ordered by
	// created_at then id. Returns empty slice if the node is a leaf.
	GetChildren(ctx context.Context, nodeID string) ([]models.Node, error)

	// CreateNode creates a new node.
	// Validates that parent_id exists if provided.
	CreateNode(ctx context.Context, node *models.Node) error

	// UpdateNodeText replaces a node's text in place. ID, parent and
	// position in the tree are unchanged.
	// Returns domain.ErrNotFound if not found.
	UpdateNodeText(ctx context.Context, nodeID, text string) (*models.Node, error)

	// DeleteNodes removes the given nodes in a single atomic statement
	// and returns the number of rows removed. Callers pass a complete
	// subtree so the tree never transiently contains orphans.
	DeleteNodes(ctx context.Context, nodeIDs []string) (int64, error)
}
