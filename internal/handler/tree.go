package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/httputil"
	"arbor/internal/service"
)

// TreeHandler serves the rendered views of a conversation tree: the
// 2-D layout for the canvas and the strict consistency report.
type TreeHandler struct {
	nodes  *service.NodeService
	logger *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(nodes *service.NodeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		nodes:  nodes,
		logger: logger,
	}
}

// GetLayout returns positioned turn nodes for the tree canvas. The
// optional x and y query parameters anchor the root.
// GET /api/conversations/{id}/layout?x=0&y=0
func (h *TreeHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	originX := queryFloat(r, "x", 0)
	originY := queryFloat(r, "y", 0)

	nodes, err := h.nodes.GetLayout(r.Context(), conversationID, userID, originX, originY)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, nodes)
}

// GetTurns returns the chat-pair projection of the conversation along
// with the default branch selection per turn.
// GET /api/conversations/{id}/turns
func (h *TreeHandler) GetTurns(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	tt, selected, err := h.nodes.GetTurnTree(r.Context(), conversationID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"turns":    tt.Turns,
		"roots":    tt.Roots,
		"selected": selected,
	})
}

// CheckConsistency reports broken parent chains, cycles and stray
// roots. Diagnostic endpoint; the regular views tolerate these.
// GET /api/conversations/{id}/consistency
func (h *TreeHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	issues, err := h.nodes.CheckConsistency(r.Context(), conversationID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"consistent": len(issues) == 0,
		"issues":     issues,
	})
}
