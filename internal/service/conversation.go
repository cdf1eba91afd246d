package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"arbor/internal/config"
	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
)

// ConversationService handles conversation session management.
type ConversationService struct {
	convRepo repositories.ConversationRepository
	nodeRepo repositories.NodeRepository
	logger   *slog.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	convRepo repositories.ConversationRepository,
	nodeRepo repositories.NodeRepository,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

// CreateConversationRequest carries the fields for a new conversation
type CreateConversationRequest struct {
	OwnerID  string `json:"-"`
	Title    string `json:"title"`
	IsPublic bool   `json:"is_public"`
}

func (r CreateConversationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, config.MaxConversationTitleLength)),
	)
}

// UpdateConversationRequest carries the mutable conversation fields
type UpdateConversationRequest struct {
	Title    *string `json:"title,omitempty"`
	IsPublic *bool   `json:"is_public,omitempty"`
}

func (r UpdateConversationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, config.MaxConversationTitleLength)),
	)
}

// CreateConversation creates a new conversation session
func (s *ConversationService) CreateConversation(ctx context.Context, req *CreateConversationRequest) (*models.Conversation, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv := &models.Conversation{
		OwnerID:   req.OwnerID,
		Title:     strings.TrimSpace(req.Title),
		IsPublic:  req.IsPublic,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := s.convRepo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		"id", conv.ID,
		"title", conv.Title,
		"owner_id", conv.OwnerID,
	)

	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (s *ConversationService) GetConversation(ctx context.Context, conversationID, ownerID string) (*models.Conversation, error) {
	return s.convRepo.GetConversation(ctx, conversationID, ownerID)
}

// ListConversations retrieves all conversations for an owner
func (s *ConversationService) ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	return s.convRepo.ListConversations(ctx, ownerID)
}

// UpdateConversation updates title and visibility
func (s *ConversationService) UpdateConversation(ctx context.Context, conversationID, ownerID string, req *UpdateConversationRequest) (*models.Conversation, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.convRepo.GetConversation(ctx, conversationID, ownerID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		conv.Title = strings.TrimSpace(*req.Title)
	}
	if req.IsPublic != nil {
		conv.IsPublic = *req.IsPublic
	}

	if err := s.convRepo.UpdateConversation(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation updated", "id", conv.ID, "owner_id", ownerID)

	return conv, nil
}

// SetActiveNode moves the conversation's view to an arbitrary node.
// The node must belong to the conversation. Relocation itself is pure
// path computation; only the active pointer is persisted.
func (s *ConversationService) SetActiveNode(ctx context.Context, conversationID, ownerID, nodeID string) error {
	if _, err := s.convRepo.GetConversation(ctx, conversationID, ownerID); err != nil {
		return err
	}

	node, err := s.nodeRepo.GetNode(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.ConversationID != conversationID || node.Deleted {
		return fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}

	return s.convRepo.UpdateActiveNode(ctx, conversationID, ownerID, nodeID)
}

// DeleteConversation soft-deletes a conversation
func (s *ConversationService) DeleteConversation(ctx context.Context, conversationID, ownerID string) (*models.Conversation, error) {
	conv, err := s.convRepo.DeleteConversation(ctx, conversationID, ownerID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation deleted", "id", conversationID, "owner_id", ownerID)

	return conv, nil
}
