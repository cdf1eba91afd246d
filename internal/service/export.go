package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
	"arbor/internal/tree"
)

const (
	markdownSnippetLen = 100
	mermaidLabelLen    = 28
)

// ExportService renders a conversation tree as a versioned JSON
// payload, a nested Markdown outline, or a Mermaid graph. All formats
// exclude soft-deleted nodes.
type ExportService struct {
	nodeRepo repositories.NodeRepository
	convRepo repositories.ConversationRepository
	logger   *slog.Logger
}

// NewExportService creates an export service
func NewExportService(
	nodeRepo repositories.NodeRepository,
	convRepo repositories.ConversationRepository,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		nodeRepo: nodeRepo,
		convRepo: convRepo,
		logger:   logger,
	}
}

func (s *ExportService) snapshot(ctx context.Context, conversationID, ownerID string) (*models.Conversation, *tree.Index, error) {
	conv, err := s.convRepo.GetConversation(ctx, conversationID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	nodes, err := s.nodeRepo.GetNodesByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return conv, tree.NewIndex(nodes), nil
}

// ExportJSON produces the round-trippable payload consumed by Import.
func (s *ExportService) ExportJSON(ctx context.Context, conversationID, ownerID string) (*models.ExportPayload, error) {
	conv, idx, err := s.snapshot(ctx, conversationID, ownerID)
	if err != nil {
		return nil, err
	}

	payload := &models.ExportPayload{
		Version: models.ExportVersion,
		Conversation: models.ExportConversation{
			ID:    conv.ID,
			Title: conv.Title,
		},
		Nodes: make([]models.ExportNode, 0, idx.Len()),
	}

	for _, root := range idx.Roots() {
		for _, id := range idx.Descendants(root.ID) {
			n := idx.Node(id)
			payload.Nodes = append(payload.Nodes, models.ExportNode{
				ID:        n.ID,
				ParentID:  n.ParentID,
				Role:      n.Role,
				Text:      n.Text,
				CreatedAt: n.CreatedAt,
			})
		}
	}

	s.logger.Info("conversation exported", "conversation_id", conv.ID, "format", "json", "nodes", len(payload.Nodes))

	return payload, nil
}

// ExportMarkdown renders the tree as a nested bullet outline. Each
// bullet carries the role and a snippet of the text; depth maps to
// indentation so branches read as sub-lists.
func (s *ExportService) ExportMarkdown(ctx context.Context, conversationID, ownerID string) (string, error) {
	conv, idx, err := s.snapshot(ctx, conversationID, ownerID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		n := idx.Node(id)
		fmt.Fprintf(&b, "%s- **%s:** %s\n",
			strings.Repeat("  ", depth),
			n.Role,
			markdownSnippet(n.Text),
		)
		for _, child := range idx.Children(id) {
			walk(child.ID, depth+1)
		}
	}
	for _, root := range idx.Roots() {
		walk(root.ID, 0)
	}

	return b.String(), nil
}

// ExportMermaid renders the tree as a top-down Mermaid graph with one
// edge per parent link.
func (s *ExportService) ExportMermaid(ctx context.Context, conversationID, ownerID string) (string, error) {
	_, idx, err := s.snapshot(ctx, conversationID, ownerID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("graph TD\n")

	for _, root := range idx.Roots() {
		for _, id := range idx.Descendants(root.ID) {
			n := idx.Node(id)
			fmt.Fprintf(&b, "    %s[\"%s\"]\n", mermaidID(n.ID), mermaidLabel(n))
			if n.ParentID != nil {
				fmt.Fprintf(&b, "    %s --> %s\n", mermaidID(*n.ParentID), mermaidID(n.ID))
			}
		}
	}

	return b.String(), nil
}

func markdownSnippet(text string) string {
	flat := strings.ReplaceAll(text, "\n", " ")
	if runes := []rune(flat); len(runes) > markdownSnippetLen {
		return string(runes[:markdownSnippetLen]) + "…"
	}
	return flat
}

// mermaidID strips uuid dashes so node ids are valid Mermaid
// identifiers.
func mermaidID(id string) string {
	return "n" + strings.ReplaceAll(id, "-", "")
}

func mermaidLabel(n *models.Node) string {
	label := strings.ReplaceAll(n.Text, "\n", " ")
	label = strings.ReplaceAll(label, `"`, "'")
	if runes := []rune(label); len(runes) > mermaidLabelLen {
		label = string(runes[:mermaidLabelLen]) + "…"
	}
	return n.Role + ": " + label
}
