package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"arbor/internal/config"
	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
)

// ImportService rebuilds a conversation tree from an export payload.
// Every node receives a fresh id; parent references are remapped
// through the same table so the imported tree never collides with
// existing rows.
type ImportService struct {
	nodeRepo  repositories.NodeRepository
	convRepo  repositories.ConversationRepository
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewImportService creates an import service
func NewImportService(
	nodeRepo repositories.NodeRepository,
	convRepo repositories.ConversationRepository,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) *ImportService {
	return &ImportService{
		nodeRepo:  nodeRepo,
		convRepo:  convRepo,
		txManager: txManager,
		logger:    logger,
	}
}

// ImportRequest carries a payload plus the import target. When
// AttachParentID is set the imported root is grafted under that
// existing node of ConversationID; otherwise a new conversation is
// created from the payload's metadata.
type ImportRequest struct {
	OwnerID        string               `json:"-"`
	ConversationID string               `json:"conversation_id,omitempty"`
	AttachParentID *string              `json:"attach_parent_id,omitempty"`
	Payload        models.ExportPayload `json:"payload"`
}

// ImportResult reports what an import produced.
type ImportResult struct {
	Conversation *models.Conversation `json:"conversation"`
	NodeCount    int                  `json:"node_count"`
	RootID       string               `json:"root_id"`
}

func (r ImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Payload, validation.By(validatePayload)),
	)
}

func validatePayload(value interface{}) error {
	p, _ := value.(models.ExportPayload)
	if p.Version != models.ExportVersion {
		return fmt.Errorf("unsupported export version %d", p.Version)
	}
	if len(p.Nodes) == 0 {
		return fmt.Errorf("payload contains no nodes")
	}
	if len(p.Nodes) > config.MaxImportNodes {
		return fmt.Errorf("payload exceeds %d nodes", config.MaxImportNodes)
	}
	for _, n := range p.Nodes {
		switch n.Role {
		case models.RoleSystem, models.RoleUser, models.RoleAssistant:
		default:
			return fmt.Errorf("node %s has unknown role %q", n.ID, n.Role)
		}
		if len(n.Text) > config.MaxMessageLength {
			return fmt.Errorf("node %s text exceeds %d characters", n.ID, config.MaxMessageLength)
		}
	}
	return nil
}

// Import validates the payload, remaps every id, and persists nodes
// parent-before-child inside one transaction.
func (s *ImportService) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	ordered, roots, err := orderNodes(req.Payload.Nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var conv *models.Conversation
	var attachParent *models.Node

	if req.AttachParentID != nil {
		if req.ConversationID == "" {
			return nil, fmt.Errorf("%w: attach_parent_id requires conversation_id", domain.ErrValidation)
		}
		conv, err = s.convRepo.GetConversation(ctx, req.ConversationID, req.OwnerID)
		if err != nil {
			return nil, err
		}
		attachParent, err = s.nodeRepo.GetNode(ctx, *req.AttachParentID)
		if err != nil {
			return nil, err
		}
		if attachParent.ConversationID != conv.ID || attachParent.Deleted {
			return nil, fmt.Errorf("attach parent %s: %w", *req.AttachParentID, domain.ErrNotFound)
		}
	} else {
		if len(roots) != 1 {
			return nil, fmt.Errorf("%w: payload has %d roots, a new conversation needs exactly one", domain.ErrValidation, len(roots))
		}
		title := req.Payload.Conversation.Title
		if title == "" {
			title = "Imported conversation"
		}
		conv = &models.Conversation{
			OwnerID:   req.OwnerID,
			Title:     title,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
	}

	// Old id -> new id. Allocated up front so children can reference
	// parents that have not been persisted yet.
	remap := make(map[string]string, len(ordered))
	for _, n := range ordered {
		remap[n.ID] = uuid.NewString()
	}

	var rootID string
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if req.AttachParentID == nil {
			if err := s.convRepo.CreateConversation(txCtx, conv); err != nil {
				return err
			}
		}

		for _, old := range ordered {
			node := &models.Node{
				ID:             remap[old.ID],
				ConversationID: conv.ID,
				Role:           old.Role,
				Text:           old.Text,
				CreatedAt:      old.CreatedAt,
			}
			if old.ParentID != nil {
				mapped := remap[*old.ParentID]
				node.ParentID = &mapped
			} else if attachParent != nil {
				node.ParentID = &attachParent.ID
			}
			if err := s.nodeRepo.CreateNode(txCtx, node); err != nil {
				return err
			}
			if old.ParentID == nil {
				rootID = node.ID
			}
		}

		return s.convRepo.UpdateActiveNode(txCtx, conv.ID, conv.OwnerID, rootID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation imported",
		"conversation_id", conv.ID,
		"nodes", len(ordered),
		"attached", req.AttachParentID != nil,
	)

	return &ImportResult{
		Conversation: conv,
		NodeCount:    len(ordered),
		RootID:       rootID,
	}, nil
}

// orderNodes returns the payload nodes in parent-before-child order
// (BFS from the roots, siblings oldest first) plus the root ids. It
// rejects dangling parents, duplicate ids and unreachable cycles.
func orderNodes(nodes []models.ExportNode) ([]models.ExportNode, []string, error) {
	byID := make(map[string]models.ExportNode, len(nodes))
	children := make(map[string][]string)
	var roots []string

	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, nil, fmt.Errorf("duplicate node id %s", n.ID)
		}
		byID[n.ID] = n
	}
	for _, n := range nodes {
		if n.ParentID == nil {
			roots = append(roots, n.ID)
			continue
		}
		if _, ok := byID[*n.ParentID]; !ok {
			return nil, nil, fmt.Errorf("node %s references missing parent %s", n.ID, *n.ParentID)
		}
		children[*n.ParentID] = append(children[*n.ParentID], n.ID)
	}
	if len(roots) == 0 {
		return nil, nil, fmt.Errorf("payload has no root node")
	}

	sortByCreation := func(ids []string) {
		sort.Slice(ids, func(i, j int) bool {
			a, b := byID[ids[i]], byID[ids[j]]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
	}
	sortByCreation(roots)

	ordered := make([]models.ExportNode, 0, len(nodes))
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, byID[id])

		kids := append([]string(nil), children[id]...)
		sortByCreation(kids)
		queue = append(queue, kids...)
	}
	if len(ordered) != len(nodes) {
		return nil, nil, fmt.Errorf("%d nodes unreachable from any root", len(nodes)-len(ordered))
	}

	return ordered, roots, nil
}
