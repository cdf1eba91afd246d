package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/httputil"
	"arbor/internal/service"
)

// DebugHandler exposes raw tree internals. Registered only in dev;
// the responses are unbounded and leak soft-deleted rows.
type DebugHandler struct {
	nodes  *service.NodeService
	logger *slog.Logger
}

// NewDebugHandler creates a new debug handler
func NewDebugHandler(nodes *service.NodeService, logger *slog.Logger) *DebugHandler {
	return &DebugHandler{
		nodes:  nodes,
		logger: logger,
	}
}

// GetRawTree returns every node row of the conversation, including
// soft-deleted ones
// GET /debug/api/conversations/{id}/tree
func (h *DebugHandler) GetRawTree(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	nodes, err := h.nodes.GetRawNodes(r.Context(), conversationID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, nodes)
}
