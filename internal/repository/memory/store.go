// Package memory provides in-memory implementations of the store
// adapter contracts. Used by tests and local development; mutations are
// guarded by a single mutex so batch deletes are observed atomically,
// matching the guarantee the engine assumes from the real store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
)

// Store holds conversations and nodes in memory. It implements
// repositories.NodeRepository, repositories.ConversationRepository and
// repositories.TransactionManager.
type Store struct {
	mu            sync.RWMutex
	nodes         map[string]models.Node
	conversations map[string]models.Conversation
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		nodes:         make(map[string]models.Node),
		conversations: make(map[string]models.Conversation),
	}
}

var (
	_ repositories.NodeRepository         = (*Store)(nil)
	_ repositories.ConversationRepository = (*Store)(nil)
	_ repositories.TransactionManager     = (*Store)(nil)
)

// ExecTx satisfies TransactionManager. Every individual mutation on the
// store is already atomic under the mutex, so fn just runs with the
// plain context.
func (s *Store) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return fn(ctx)
}

// --- NodeRepository ---

func (s *Store) GetNodesByConversation(_ context.Context, conversationID string) ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := []models.Node{}
	for _, n := range s.nodes {
		if n.ConversationID == conversationID {
			nodes = append(nodes, n)
		}
	}
	sortNodes(nodes)
	return nodes, nil
}

func (s *Store) GetNode(_ context.Context, nodeID string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	return &n, nil
}

func (s *Store) GetNodePath(_ context.Context, nodeID string) ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reversed []models.Node
	current, ok := s.nodes[nodeID]
	for hops := 0; ok && hops <= len(s.nodes); hops++ {
		if !current.Deleted {
			reversed = append(reversed, current)
		}
		if current.ParentID == nil {
			break
		}
		current, ok = s.nodes[*current.ParentID]
	}

	path := make([]models.Node, len(reversed))
	for i := range reversed {
		path[len(reversed)-1-i] = reversed[i]
	}
	return path, nil
}

func (s *Store) GetChildren(_ context.Context, nodeID string) ([]models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	children := []models.Node{}
	for _, n := range s.nodes {
		if n.ParentID != nil && *n.ParentID == nodeID && !n.Deleted {
			children = append(children, n)
		}
	}
	sortNodes(children)
	return children, nil
}

func (s *Store) CreateNode(_ context.Context, node *models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ParentID != nil {
		parent, ok := s.nodes[*node.ParentID]
		if !ok {
			return fmt.Errorf("parent node %s: %w", *node.ParentID, domain.ErrNotFound)
		}
		if parent.ConversationID != node.ConversationID {
			return fmt.Errorf("%w: parent node belongs to another conversation", domain.ErrValidation)
		}
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.nodes[node.ID]; exists {
		return fmt.Errorf("node %s: %w", node.ID, domain.ErrConflict)
	}

	s.nodes[node.ID] = *node
	return nil
}

func (s *Store) UpdateNodeText(_ context.Context, nodeID, text string) (*models.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	n.Text = text
	s.nodes[nodeID] = n
	return &n, nil
}

func (s *Store) DeleteNodes(_ context.Context, nodeIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, id := range nodeIDs {
		if _, ok := s.nodes[id]; ok {
			delete(s.nodes, id)
			count++
		}
	}
	return count, nil
}

// --- ConversationRepository ---

func (s *Store) CreateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
		conv.UpdatedAt = conv.CreatedAt
	}
	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrConflict)
	}

	s.conversations[conv.ID] = *conv
	return nil
}

func (s *Store) GetConversation(_ context.Context, conversationID, ownerID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getConversationLocked(conversationID, ownerID)
}

func (s *Store) getConversationLocked(conversationID, ownerID string) (*models.Conversation, error) {
	conv, ok := s.conversations[conversationID]
	if !ok || conv.OwnerID != ownerID || conv.DeletedAt != nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}
	return &conv, nil
}

func (s *Store) ListConversations(_ context.Context, ownerID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conversations := []models.Conversation{}
	for _, c := range s.conversations {
		if c.OwnerID == ownerID && c.DeletedAt == nil {
			conversations = append(conversations, c)
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

func (s *Store) UpdateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getConversationLocked(conv.ID, conv.OwnerID); err != nil {
		return err
	}
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[conv.ID] = *conv
	return nil
}

func (s *Store) UpdateActiveNode(_ context.Context, conversationID, ownerID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.getConversationLocked(conversationID, ownerID)
	if err != nil {
		return err
	}
	conv.ActiveNodeID = &nodeID
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[conversationID] = *conv
	return nil
}

func (s *Store) DeleteConversation(_ context.Context, conversationID, ownerID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.getConversationLocked(conversationID, ownerID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	conv.DeletedAt = &now
	conv.UpdatedAt = now
	s.conversations[conversationID] = *conv
	return conv, nil
}

func sortNodes(nodes []models.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].ID < nodes[j].ID
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
}
