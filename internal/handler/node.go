package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/httputil"
	"arbor/internal/service"
)

// NodeHandler handles node HTTP requests: message creation (including
// branching), in-place edits, subtree deletion and path navigation.
type NodeHandler struct {
	nodes  *service.NodeService
	logger *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(nodes *service.NodeService, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{
		nodes:  nodes,
		logger: logger,
	}
}

// CreateMessage adds a user node under any existing node (or starts
// the tree when parent_id is omitted)
// POST /api/conversations/{id}/nodes
func (h *NodeHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	var req service.CreateMessageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ConversationID = conversationID
	req.OwnerID = userID

	node, err := h.nodes.CreateMessage(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, node)
}

// EditNode replaces a node's text in place
// PATCH /api/nodes/{id}
func (h *NodeHandler) EditNode(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := PathParam(w, r, "id", "Node ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	var req service.EditNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	node, err := h.nodes.EditNode(r.Context(), nodeID, userID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

type deleteSubtreeResponse struct {
	Removed int64 `json:"removed"`
}

// DeleteSubtree removes a node and all of its descendants
// DELETE /api/nodes/{id}
func (h *NodeHandler) DeleteSubtree(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := PathParam(w, r, "id", "Node ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	removed, err := h.nodes.DeleteSubtree(r.Context(), nodeID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, deleteSubtreeResponse{Removed: removed})
}

// GetPath returns the root-first chain of nodes ending at the node
// GET /api/nodes/{id}/path
func (h *NodeHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := PathParam(w, r, "id", "Node ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	path, err := h.nodes.GetPath(r.Context(), nodeID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, path)
}

// GetSiblings returns the node and its siblings, oldest first
// GET /api/nodes/{id}/siblings
func (h *NodeHandler) GetSiblings(w http.ResponseWriter, r *http.Request) {
	nodeID, ok := PathParam(w, r, "id", "Node ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	siblings, err := h.nodes.GetSiblings(r.Context(), nodeID, userID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, siblings)
}

// GetSwitchSteps decomposes a move between two nodes into the up and
// down legs around their lowest common ancestor
// GET /api/conversations/{id}/switch?from=...&to=...
func (h *NodeHandler) GetSwitchSteps(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		httputil.RespondError(w, http.StatusBadRequest, "from and to query parameters are required")
		return
	}

	userID := httputil.GetUserID(r)
	steps, err := h.nodes.GetSwitchSteps(r.Context(), conversationID, userID, from, to)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, steps)
}
