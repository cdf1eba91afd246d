package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"arbor/internal/config"
	"arbor/internal/httputil"
	"arbor/internal/service"
)

// ImportExportHandler handles conversation import and export.
type ImportExportHandler struct {
	importer *service.ImportService
	exporter *service.ExportService
	logger   *slog.Logger
}

// NewImportExportHandler creates a new import/export handler
func NewImportExportHandler(importer *service.ImportService, exporter *service.ExportService, logger *slog.Logger) *ImportExportHandler {
	return &ImportExportHandler{
		importer: importer,
		exporter: exporter,
		logger:   logger,
	}
}

// Import rebuilds a conversation from an export payload
// POST /api/import
func (h *ImportExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r)

	// Import payloads can be large; cap the body here instead of going
	// through ParseJSON and its default limit.
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxImportBody)

	var req service.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OwnerID = userID

	result, err := h.importer.Import(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, result)
}

// Export renders a conversation in the requested format
// GET /api/conversations/{id}/export?format=json|markdown|mermaid
func (h *ImportExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := PathParam(w, r, "id", "Conversation ID")
	if !ok {
		return
	}

	userID := httputil.GetUserID(r)
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	switch format {
	case "json":
		payload, err := h.exporter.ExportJSON(r.Context(), conversationID, userID)
		if err != nil {
			handleError(w, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, payload)

	case "markdown":
		md, err := h.exporter.ExportMarkdown(r.Context(), conversationID, userID)
		if err != nil {
			handleError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))

	case "mermaid":
		graph, err := h.exporter.ExportMermaid(r.Context(), conversationID, userID)
		if err != nil {
			handleError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(graph))

	default:
		httputil.RespondError(w, http.StatusBadRequest, "format must be json, markdown or mermaid")
	}
}
