package repositories

import (
	"context"

	"arbor/internal/domain/models"
)

// ConversationRepository defines the interface for conversation data access
type ConversationRepository interface {
	// CreateConversation creates a new conversation
	CreateConversation(ctx context.Context, conv *models.Conversation) error

	// GetConversation retrieves a conversation by ID (scoped to owner)
	// Returns domain.ErrNotFound if not found or soft-deleted
	GetConversation(ctx context.Context, conversationID, ownerID string) (*models.Conversation, error)

	// ListConversations retrieves all conversations for an owner
	// Returns empty slice if none found
	ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error)

	// UpdateConversation updates a conversation's mutable fields
	// (title, is_public, active_node_id, updated_at)
	// Returns domain.ErrNotFound if not found
	UpdateConversation(ctx context.Context, conv *models.Conversation) error

	// UpdateActiveNode updates only the active_node_id field
	// Returns domain.ErrNotFound if conversation not found
	UpdateActiveNode(ctx context.Context, conversationID, ownerID, nodeID string) error

	// DeleteConversation soft-deletes a conversation
	// Returns domain.ErrNotFound if not found or already deleted
	DeleteConversation(ctx context.Context, conversationID, ownerID string) (*models.Conversation, error)
}
