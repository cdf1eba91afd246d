// Package conversation assembles bounded context windows for the
// completion call from root-to-leaf node paths.
package conversation

import (
	"log/slog"
	"strings"

	"arbor/internal/domain/models"
	domainllm "arbor/internal/domain/services/llm"
)

const (
	// DefaultTokenBudget is the default context window budget.
	DefaultTokenBudget = 7000
	// DefaultKeepRecentPairs is how many recent user/assistant pairs
	// are always kept verbatim when the path is over budget.
	DefaultKeepRecentPairs = 6

	// Snippet limits for the degrade-to-summary policy.
	userSnippetLen      = 100
	assistantSnippetLen = 150
	topicSnippetLen     = 50

	// DefaultSystemPrompt is the fixed role message prepended to every
	// assembled window.
	DefaultSystemPrompt = "You are a helpful assistant in a branching conversation. " +
		"Answer the user's latest message using the conversation history for context."
)

// Options tune one context assembly. Zero values fall back to the
// defaults above.
type Options struct {
	TokenBudget     int
	KeepRecentPairs int
}

// ContextBuilder converts a root-to-leaf node path into an ordered,
// bounded message list. It is a pure function of (path, options): no
// hidden state, no storage access.
type ContextBuilder struct {
	systemPrompt string
	logger       *slog.Logger
}

// NewContextBuilder creates a context builder. An empty systemPrompt
// selects the default role message.
func NewContextBuilder(systemPrompt string, logger *slog.Logger) *ContextBuilder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &ContextBuilder{systemPrompt: systemPrompt, logger: logger}
}

// EstimateTokens is the deterministic coarse token approximation used
// throughout the assembler: ceil(characters / 4). No real tokenizer
// dependency, so the same input always costs the same.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func estimateMessages(msgs []domainllm.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}

// Build assembles the message list for a completion call.
//
// The recent tail (KeepRecentPairs user/assistant pairs) is always
// emitted verbatim; when the full path fits the budget everything is
// verbatim. Otherwise the early segment degrades to a single system
// summary message, and if even that summary overflows the budget it
// collapses further to a one-sentence topic list. Returns the messages
// and their estimated token count.
func (b *ContextBuilder) Build(path []models.Node, opts Options) ([]domainllm.Message, int) {
	budget := opts.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	keepPairs := opts.KeepRecentPairs
	if keepPairs <= 0 {
		keepPairs = DefaultKeepRecentPairs
	}

	messages := []domainllm.Message{{Role: models.RoleSystem, Content: b.systemPrompt}}

	// Only user/assistant utterances participate; system nodes in the
	// path carry no dialogue.
	convo := make([]models.Node, 0, len(path))
	totalChars := 0
	for _, n := range path {
		if n.Role != models.RoleUser && n.Role != models.RoleAssistant {
			continue
		}
		convo = append(convo, n)
		totalChars += len(n.Text)
	}

	if (totalChars+3)/4 <= budget {
		for _, n := range convo {
			messages = append(messages, domainllm.Message{Role: n.Role, Content: n.Text})
		}
		return messages, estimateMessages(messages)
	}

	// Over budget: split into an early segment and a verbatim tail.
	keepNodes := keepPairs * 2
	cut := len(convo) - keepNodes
	if cut < 0 {
		cut = 0
	}
	early, recent := convo[:cut], convo[cut:]

	summary := summarizePairs(early)
	if EstimateTokens(summary) > budget {
		summary = summarizeTopics(early, budget)
	}
	if summary != "" {
		messages = append(messages, domainllm.Message{
			Role:    models.RoleSystem,
			Content: "Summary of the earlier conversation: " + summary,
		})
	}

	for _, n := range recent {
		messages = append(messages, domainllm.Message{Role: n.Role, Content: n.Text})
	}

	est := estimateMessages(messages)
	if b.logger != nil {
		b.logger.Debug("context degraded to summary",
			"early_nodes", len(early),
			"recent_nodes", len(recent),
			"estimated_tokens", est,
			"budget", budget,
		)
	}
	return messages, est
}

// summarizePairs concatenates truncated snippets of each early
// user/assistant exchange.
func summarizePairs(early []models.Node) string {
	var sb strings.Builder
	for _, n := range early {
		switch n.Role {
		case models.RoleUser:
			sb.WriteString("User: ")
			sb.WriteString(truncate(n.Text, userSnippetLen))
			sb.WriteString("\n")
		case models.RoleAssistant:
			sb.WriteString("Assistant: ")
			sb.WriteString(truncate(n.Text, assistantSnippetLen))
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

// summarizeTopics collapses the early segment to a single sentence
// listing just the user-turn topics. The result is additionally capped
// at the character budget so the window can never grow unboundedly.
func summarizeTopics(early []models.Node, budget int) string {
	var topics []string
	for _, n := range early {
		if n.Role == models.RoleUser {
			topics = append(topics, truncate(n.Text, topicSnippetLen))
		}
	}
	if len(topics) == 0 {
		return ""
	}
	sentence := "The user previously asked about: " + strings.Join(topics, ", ") + "."
	return truncate(sentence, budget*4)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
