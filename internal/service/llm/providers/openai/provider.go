// Package openai implements the CompletionProvider contract against
// any OpenAI-compatible completion API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"

	domainllm "arbor/internal/domain/services/llm"
)

// Provider calls an OpenAI-compatible chat completion endpoint.
type Provider struct {
	client *goopenai.Client
	model  string
	logger *slog.Logger
}

// NewProvider creates a provider. baseURL may be empty for the default
// endpoint or point at a compatible gateway.
func NewProvider(apiKey, baseURL, model string, logger *slog.Logger) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Provider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

func convertMessages(messages []domainllm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return out
}

// Complete returns a single completion string for the messages.
func (p *Provider) Complete(ctx context.Context, messages []domainllm.Message) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    p.model,
		Messages: convertMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream returns a channel of text deltas. The channel closes after a
// Done or Err delta; cancelling the context aborts the stream.
func (p *Provider) Stream(ctx context.Context, messages []domainllm.Message) (<-chan domainllm.StreamDelta, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:    p.model,
		Messages: convertMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	deltas := make(chan domainllm.StreamDelta)
	go func() {
		defer close(deltas)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				deltas <- domainllm.StreamDelta{Done: true}
				return
			}
			if err != nil {
				deltas <- domainllm.StreamDelta{Err: err}
				return
			}
			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				select {
				case deltas <- domainllm.StreamDelta{Text: resp.Choices[0].Delta.Content}:
				case <-ctx.Done():
					deltas <- domainllm.StreamDelta{Err: ctx.Err()}
					return
				}
			}
		}
	}()

	return deltas, nil
}
