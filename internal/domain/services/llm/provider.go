package llm

import (
	"context"
)

// Message is a single entry in an assembled context window, ordered
// oldest to newest, ready for a completion request.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// StreamDelta is one increment of a streamed completion. Done is set
// on the final delta; Err is set if the stream terminated abnormally.
type StreamDelta struct {
	Text string
	Done bool
	Err  error
}

// CompletionProvider abstracts the external completion service. It may
// fail with a transport error or be aborted through the context.
type CompletionProvider interface {
	// Complete returns a single completion string for the messages.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Stream returns a channel of text deltas. The channel is closed
	// after the delta with Done or Err set. Cancelling the context
	// aborts the stream.
	Stream(ctx context.Context, messages []Message) (<-chan StreamDelta, error)
}
