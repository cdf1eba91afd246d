package handler

import (
	"log/slog"
	"net/http"
	"time"

	domainllm "arbor/internal/domain/services/llm"
	"arbor/internal/handler/sse"
	"arbor/internal/httputil"
	"arbor/internal/service/llm/streaming"
)

// StreamHandler starts reply generation and relays the deltas over
// Server-Sent Events. Generation keeps running if the client drops;
// the placeholder node is finalized either way.
type StreamHandler struct {
	streamer *streaming.Service
	logger   *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(streamer *streaming.Service, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		streamer: streamer,
		logger:   logger,
	}
}

type deltaEvent struct {
	Text string `json:"text"`
}

type errorEvent struct {
	Message string `json:"message"`
	Marker  string `json:"marker"`
}

// GenerateReply creates an assistant reply for a user node and streams
// it as SSE events: "node" (placeholder), "delta", then "done" or
// "error".
// POST /api/conversations/{id}/nodes/{nodeId}/reply
func (h *StreamHandler) GenerateReply(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}
	nodeID, ok := PathParam(w, r, "nodeId", "Node ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	placeholder, deltas, err := h.streamer.GenerateReply(r.Context(), conversationID, userID, nodeID)
	if err != nil {
		handleError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if err := writer.WriteEvent("node", placeholder); err != nil {
		h.logger.Info("client disconnected before first event", "node_id", placeholder.ID)
		h.drain(deltas)
		return
	}

	ticker := time.NewTicker(sse.DefaultKeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case delta, open := <-deltas:
			switch {
			case !open:
				return
			case delta.Err != nil:
				writer.WriteEvent("error", errorEvent{
					Message: delta.Err.Error(),
					Marker:  streaming.FailureMarkerText,
				})
				h.drain(deltas)
				return
			case delta.Done:
				writer.WriteEvent("done", placeholder)
				h.drain(deltas)
				return
			default:
				if err := writer.WriteEvent("delta", deltaEvent{Text: delta.Text}); err != nil {
					// Client gone. Keep draining so generation can
					// finish and finalize the node.
					h.logger.Info("client disconnected mid-stream", "node_id", placeholder.ID)
					h.drain(deltas)
					return
				}
			}

		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				h.logger.Info("client disconnected during keepalive", "node_id", placeholder.ID)
				h.drain(deltas)
				return
			}
		}
	}
}

// drain consumes remaining deltas so the generation goroutine never
// blocks on a send after the client is gone.
func (h *StreamHandler) drain(deltas <-chan domainllm.StreamDelta) {
	for range deltas {
	}
}

// PreviewContext returns the message window a generation from the node
// would send, without calling the provider
// GET /api/conversations/{id}/nodes/{nodeId}/context
func (h *StreamHandler) PreviewContext(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}
	nodeID, ok := PathParam(w, r, "nodeId", "Node ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	messages, estimated, err := h.streamer.PreviewContext(r.Context(), conversationID, userID, nodeID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"messages":         messages,
		"estimated_tokens": estimated,
	})
}

// Interrupt cancels an in-flight generation
// POST /api/nodes/{id}/interrupt
func (h *StreamHandler) Interrupt(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := PathParam(w, r, "id", "Node ID")
	if !ok {
		return
	}

	if err := h.streamer.Interrupt(nodeID); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
