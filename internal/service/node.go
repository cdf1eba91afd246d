package service

import (
	"context"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"arbor/internal/config"
	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/layout"
	"arbor/internal/tree"
)

// NodeService implements the structural mutations (branch, edit,
// cascading delete) and the read-side projections (paths, switch
// steps, siblings, turn tree, layout) over conversation trees.
//
// Every read works on a snapshot fetched on demand; nothing here keeps
// a long-lived in-memory tree.
type NodeService struct {
	nodeRepo  repositories.NodeRepository
	convRepo  repositories.ConversationRepository
	txManager repositories.TransactionManager
	layout    *layout.Engine
	logger    *slog.Logger
}

// NewNodeService creates a new node service
func NewNodeService(
	nodeRepo repositories.NodeRepository,
	convRepo repositories.ConversationRepository,
	txManager repositories.TransactionManager,
	layoutEngine *layout.Engine,
	logger *slog.Logger,
) *NodeService {
	return &NodeService{
		nodeRepo:  nodeRepo,
		convRepo:  convRepo,
		txManager: txManager,
		layout:    layoutEngine,
		logger:    logger,
	}
}

// CreateMessageRequest inserts a new user node. A nil ParentID starts
// the conversation tree (only valid while the tree is empty); any
// existing node, leaf or interior, may be branched from.
type CreateMessageRequest struct {
	ConversationID string  `json:"-"`
	OwnerID        string  `json:"-"`
	ParentID       *string `json:"parent_id,omitempty"`
	Text           string  `json:"text"`
}

func (r CreateMessageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, config.MaxMessageLength)),
	)
}

// EditNodeRequest replaces a node's text in place
type EditNodeRequest struct {
	Text string `json:"text"`
}

func (r EditNodeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, config.MaxMessageLength)),
	)
}

// authorizeNode loads a node and verifies the caller owns its
// conversation. Returns the node and its conversation.
func (s *NodeService) authorizeNode(ctx context.Context, nodeID, ownerID string) (*models.Node, *models.Conversation, error) {
	node, err := s.nodeRepo.GetNode(ctx, nodeID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.convRepo.GetConversation(ctx, node.ConversationID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return node, conv, nil
}

// CreateMessage inserts a new user node and makes it the active node.
// Branching is exactly this operation with ParentID pointing at any
// existing node; no other node is touched.
func (s *NodeService) CreateMessage(ctx context.Context, req *CreateMessageRequest) (*models.Node, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.convRepo.GetConversation(ctx, req.ConversationID, req.OwnerID)
	if err != nil {
		return nil, err
	}

	if req.ParentID == nil {
		// Root creation: enforce the single-root invariant.
		snapshot, err := s.nodeRepo.GetNodesByConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if len(snapshot) > 0 {
			return nil, fmt.Errorf("%w: conversation already has a root node", domain.ErrValidation)
		}
	} else {
		parent, err := s.nodeRepo.GetNode(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.ConversationID != conv.ID || parent.Deleted {
			return nil, fmt.Errorf("parent node %s: %w", *req.ParentID, domain.ErrNotFound)
		}
	}

	node := &models.Node{
		ConversationID: conv.ID,
		ParentID:       req.ParentID,
		Role:           models.RoleUser,
		Text:           req.Text,
	}
	if err := s.nodeRepo.CreateNode(ctx, node); err != nil {
		return nil, err
	}

	if err := s.convRepo.UpdateActiveNode(ctx, conv.ID, conv.OwnerID, node.ID); err != nil {
		return nil, err
	}

	s.logger.Info("node created",
		"id", node.ID,
		"conversation_id", conv.ID,
		"parent_id", req.ParentID,
	)

	return node, nil
}

// EditNode replaces a node's text. ID, parent and tree position are
// unchanged; nothing cascades.
func (s *NodeService) EditNode(ctx context.Context, nodeID, ownerID string, req *EditNodeRequest) (*models.Node, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if _, _, err := s.authorizeNode(ctx, nodeID, ownerID); err != nil {
		return nil, err
	}

	node, err := s.nodeRepo.UpdateNodeText(ctx, nodeID, req.Text)
	if err != nil {
		return nil, err
	}

	s.logger.Info("node edited", "id", nodeID, "owner_id", ownerID)

	return node, nil
}

// DeleteSubtree removes a node together with its entire subtree in one
// atomic batch, so no reader can observe orphaned children. Interior
// nodes are never removed alone. If the active node was inside the
// removed subtree, the view falls back to the deleted node's parent.
// Returns the number of nodes removed.
func (s *NodeService) DeleteSubtree(ctx context.Context, nodeID, ownerID string) (int64, error) {
	node, conv, err := s.authorizeNode(ctx, nodeID, ownerID)
	if err != nil {
		return 0, err
	}

	snapshot, err := s.nodeRepo.GetNodesByConversation(ctx, conv.ID)
	if err != nil {
		return 0, err
	}
	idx := tree.NewIndex(snapshot)
	doomed := idx.Descendants(nodeID)
	if len(doomed) == 0 {
		// Soft-deleted nodes are not in the index; delete just the node.
		doomed = []string{nodeID}
	}

	doomedSet := make(map[string]bool, len(doomed))
	for _, id := range doomed {
		doomedSet[id] = true
	}

	var removed int64
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		removed, err = s.nodeRepo.DeleteNodes(txCtx, doomed)
		if err != nil {
			return err
		}

		if conv.ActiveNodeID != nil && doomedSet[*conv.ActiveNodeID] && node.ParentID != nil {
			if err := s.convRepo.UpdateActiveNode(txCtx, conv.ID, conv.OwnerID, *node.ParentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("subtree deleted",
		"root_node_id", nodeID,
		"removed", removed,
		"conversation_id", conv.ID,
	)

	return removed, nil
}

// GetPath returns the root-first path of nodes from the root to
// nodeID, excluding soft-deleted nodes, truncating on broken chains.
func (s *NodeService) GetPath(ctx context.Context, nodeID, ownerID string) ([]models.Node, error) {
	if _, _, err := s.authorizeNode(ctx, nodeID, ownerID); err != nil {
		return nil, err
	}
	return s.nodeRepo.GetNodePath(ctx, nodeID)
}

// GetSiblings returns all children of nodeID's parent (including the
// node itself), oldest first. For a root node it returns just the node.
func (s *NodeService) GetSiblings(ctx context.Context, nodeID, ownerID string) ([]models.Node, error) {
	node, _, err := s.authorizeNode(ctx, nodeID, ownerID)
	if err != nil {
		return nil, err
	}
	if node.ParentID == nil {
		return []models.Node{*node}, nil
	}
	return s.nodeRepo.GetChildren(ctx, *node.ParentID)
}

// GetSwitchSteps decomposes the move between two nodes of one
// conversation into up/down legs around their lowest common ancestor.
func (s *NodeService) GetSwitchSteps(ctx context.Context, conversationID, ownerID, fromID, toID string) (*tree.SwitchSteps, error) {
	if _, err := s.convRepo.GetConversation(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}

	snapshot, err := s.nodeRepo.GetNodesByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	idx := tree.NewIndex(snapshot)

	steps := tree.ComputeSwitchSteps(idx, fromID, toID)
	if steps == nil {
		return nil, fmt.Errorf("switch endpoints: %w", domain.ErrNotFound)
	}
	return steps, nil
}

// GetTurnTree returns the chat-pair projection of the conversation
// plus the default branch selection (most recent child per turn) the
// client starts from.
func (s *NodeService) GetTurnTree(ctx context.Context, conversationID, ownerID string) (*tree.TurnTree, map[string]string, error) {
	if _, err := s.convRepo.GetConversation(ctx, conversationID, ownerID); err != nil {
		return nil, nil, err
	}

	snapshot, err := s.nodeRepo.GetNodesByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	tt := tree.ProjectTurns(tree.NewIndex(snapshot))

	selection := tree.NewSelection()
	selected := make(map[string]string)
	for id, turn := range tt.Turns {
		if len(turn.Children) == 0 {
			continue
		}
		selected[id] = selection.SelectedChild(tt, id)
	}

	return tt, selected, nil
}

// GetLayout projects the conversation into turns and lays them out as
// a non-overlapping diagram centered at the given origin.
func (s *NodeService) GetLayout(ctx context.Context, conversationID, ownerID string, originX, originY float64) ([]layout.Node, error) {
	if _, err := s.convRepo.GetConversation(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}

	snapshot, err := s.nodeRepo.GetNodesByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	turns := tree.ProjectTurns(tree.NewIndex(snapshot))
	return s.layout.Layout(turns, originX, originY), nil
}

// GetRawNodes returns the unprojected node rows of a conversation,
// soft-deleted rows included. Debug use only.
func (s *NodeService) GetRawNodes(ctx context.Context, conversationID, ownerID string) ([]models.Node, error) {
	if _, err := s.convRepo.GetConversation(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}
	return s.nodeRepo.GetNodesByConversation(ctx, conversationID)
}

// CheckConsistency runs the strict chain validator over the raw
// snapshot. The tolerant walkers keep the UI alive on broken data;
// this surfaces the breakage for diagnostics.
func (s *NodeService) CheckConsistency(ctx context.Context, conversationID, ownerID string) ([]*domain.ConsistencyError, error) {
	if _, err := s.convRepo.GetConversation(ctx, conversationID, ownerID); err != nil {
		return nil, err
	}

	snapshot, err := s.nodeRepo.GetNodesByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return tree.ValidateChains(snapshot), nil
}
