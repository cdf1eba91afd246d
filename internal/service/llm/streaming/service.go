// Package streaming turns a user node into a streamed assistant reply:
// it materializes a placeholder node immediately, relays provider
// deltas, and finalizes the node with either the accumulated text or
// an explicit failure marker. A placeholder is never left in a
// perpetual "generating" state.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	domainllm "arbor/internal/domain/services/llm"
	"arbor/internal/service/llm/conversation"
	"arbor/internal/tree"
)

// FailureMarkerText finalizes a placeholder whose generation failed,
// timed out or was interrupted. A retry is just a fresh request
// reusing the same parent node.
const FailureMarkerText = "[Generation failed or was interrupted. Use try again to regenerate this reply.]"

// Config tunes one streaming service instance.
type Config struct {
	// StreamTimeout caps how long a single generation may run.
	StreamTimeout time.Duration
	// TokenBudget and KeepRecentPairs feed context assembly.
	TokenBudget     int
	KeepRecentPairs int
}

// Service orchestrates context assembly and the completion call.
type Service struct {
	nodeRepo repositories.NodeRepository
	convRepo repositories.ConversationRepository
	builder  *conversation.ContextBuilder
	provider domainllm.CompletionProvider
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc // assistant node id -> cancel
}

// NewService creates a streaming service.
func NewService(
	nodeRepo repositories.NodeRepository,
	convRepo repositories.ConversationRepository,
	builder *conversation.ContextBuilder,
	provider domainllm.CompletionProvider,
	cfg Config,
	logger *slog.Logger,
) *Service {
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 60 * time.Second
	}
	return &Service{
		nodeRepo: nodeRepo,
		convRepo: convRepo,
		builder:  builder,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		inFlight: make(map[string]context.CancelFunc),
	}
}

// GenerateReply creates an assistant placeholder under userNodeID and
// starts streaming its text. The returned channel relays deltas for
// SSE; it closes once the node is finalized (success or failure).
func (s *Service) GenerateReply(ctx context.Context, conversationID, ownerID, userNodeID string) (*models.Node, <-chan domainllm.StreamDelta, error) {
	conv, err := s.convRepo.GetConversation(ctx, conversationID, ownerID)
	if err != nil {
		return nil, nil, err
	}

	userNode, err := s.nodeRepo.GetNode(ctx, userNodeID)
	if err != nil {
		return nil, nil, err
	}
	if userNode.ConversationID != conv.ID {
		return nil, nil, fmt.Errorf("node %s: %w", userNodeID, domain.ErrNotFound)
	}
	if userNode.Role != models.RoleUser {
		return nil, nil, fmt.Errorf("%w: replies can only be generated for user nodes", domain.ErrValidation)
	}

	messages, estimated, err := s.assemble(ctx, conv.ID, userNodeID)
	if err != nil {
		return nil, nil, err
	}

	// Materialize the placeholder before the provider call so the UI
	// can render a pending reply immediately.
	placeholder := &models.Node{
		ConversationID: conv.ID,
		ParentID:       &userNode.ID,
		Role:           models.RoleAssistant,
		Text:           "",
	}
	if err := s.nodeRepo.CreateNode(ctx, placeholder); err != nil {
		return nil, nil, err
	}

	s.logger.Info("generation started",
		"conversation_id", conv.ID,
		"node_id", placeholder.ID,
		"messages", len(messages),
		"estimated_tokens", estimated,
	)

	// Generation is detached from the request context: an SSE client
	// dropping must not abandon the placeholder. The timeout and the
	// interrupt endpoint are the two ways to stop it.
	genCtx, cancel := context.WithTimeout(context.Background(), s.cfg.StreamTimeout)
	s.register(placeholder.ID, cancel)

	out := make(chan domainllm.StreamDelta)
	go s.run(genCtx, cancel, conv, placeholder, messages, out)

	return placeholder, out, nil
}

// assemble builds the provider message window for a node from a fresh
// snapshot of its conversation.
func (s *Service) assemble(ctx context.Context, conversationID, nodeID string) ([]domainllm.Message, int, error) {
	snapshot, err := s.nodeRepo.GetNodesByConversation(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	idx := tree.NewIndex(snapshot)
	pathIDs := tree.PathToRoot(idx, nodeID)
	path := make([]models.Node, 0, len(pathIDs))
	for _, id := range pathIDs {
		path = append(path, *idx.Node(id))
	}
	messages, estimated := s.builder.Build(path, conversation.Options{
		TokenBudget:     s.cfg.TokenBudget,
		KeepRecentPairs: s.cfg.KeepRecentPairs,
	})
	return messages, estimated, nil
}

// PreviewContext returns the exact message window a generation from
// nodeID would send, without calling the provider.
func (s *Service) PreviewContext(ctx context.Context, conversationID, ownerID, nodeID string) ([]domainllm.Message, int, error) {
	conv, err := s.convRepo.GetConversation(ctx, conversationID, ownerID)
	if err != nil {
		return nil, 0, err
	}
	node, err := s.nodeRepo.GetNode(ctx, nodeID)
	if err != nil {
		return nil, 0, err
	}
	if node.ConversationID != conv.ID {
		return nil, 0, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
	}
	return s.assemble(ctx, conv.ID, nodeID)
}

// Interrupt cancels an in-flight generation for the given assistant
// node. Returns domain.ErrNotFound if nothing is streaming for it.
func (s *Service) Interrupt(nodeID string) error {
	s.mu.Lock()
	cancel, ok := s.inFlight[nodeID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no generation in flight for node %s: %w", nodeID, domain.ErrNotFound)
	}
	cancel()
	return nil
}

func (s *Service) register(nodeID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.inFlight[nodeID] = cancel
	s.mu.Unlock()
}

func (s *Service) unregister(nodeID string) {
	s.mu.Lock()
	delete(s.inFlight, nodeID)
	s.mu.Unlock()
}

func (s *Service) run(
	ctx context.Context,
	cancel context.CancelFunc,
	conv *models.Conversation,
	placeholder *models.Node,
	messages []domainllm.Message,
	out chan<- domainllm.StreamDelta,
) {
	defer close(out)
	defer cancel()
	defer s.unregister(placeholder.ID)

	deltas, err := s.provider.Stream(ctx, messages)
	if err != nil {
		s.finalizeFailure(placeholder.ID, err)
		out <- domainllm.StreamDelta{Err: err}
		return
	}

	var accumulated string
	for delta := range deltas {
		switch {
		case delta.Err != nil:
			s.finalizeFailure(placeholder.ID, delta.Err)
			out <- domainllm.StreamDelta{Err: delta.Err}
			return
		case delta.Done:
			s.finalizeSuccess(conv, placeholder.ID, accumulated)
			out <- domainllm.StreamDelta{Done: true}
			return
		default:
			accumulated += delta.Text
			out <- delta
		}
	}

	// Provider closed the channel without a terminal delta: treat as
	// failure so the placeholder never stays pending.
	s.finalizeFailure(placeholder.ID, errors.New("stream ended without completion"))
}

func (s *Service) finalizeSuccess(conv *models.Conversation, nodeID, text string) {
	// Finalization uses a fresh context: the generation context may
	// already be expired and the node must still be written.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.nodeRepo.UpdateNodeText(ctx, nodeID, text); err != nil {
		s.logger.Error("failed to finalize streamed node", "node_id", nodeID, "error", err)
		return
	}
	if err := s.convRepo.UpdateActiveNode(ctx, conv.ID, conv.OwnerID, nodeID); err != nil {
		s.logger.Error("failed to advance active node", "node_id", nodeID, "error", err)
	}

	s.logger.Info("generation complete", "node_id", nodeID, "chars", len(text))
}

func (s *Service) finalizeFailure(nodeID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.nodeRepo.UpdateNodeText(ctx, nodeID, FailureMarkerText); err != nil {
		s.logger.Error("failed to write failure marker", "node_id", nodeID, "error", err)
	}

	s.logger.Warn("generation failed", "node_id", nodeID, "cause", cause)
}
