package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arbor/internal/domain/models"
	"arbor/internal/httputil"
	"arbor/internal/layout"
	"arbor/internal/repository/memory"
	"arbor/internal/service"
)

// testServer wires the HTTP surface over the in-memory store. Auth is
// replaced by a middleware that injects a fixed user id.
type testServer struct {
	mux   *http.ServeMux
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	params, err := layout.LoadParams()
	if err != nil {
		t.Fatalf("LoadParams: %v", err)
	}

	conversationService := service.NewConversationService(store, store, logger)
	nodeService := service.NewNodeService(store, store, store, layout.NewEngine(params), logger)
	importService := service.NewImportService(store, store, store, logger)
	exportService := service.NewExportService(store, store, logger)

	conversationHandler := NewConversationHandler(conversationService, logger)
	nodeHandler := NewNodeHandler(nodeService, logger)
	treeHandler := NewTreeHandler(nodeService, logger)
	importExportHandler := NewImportExportHandler(importService, exportService, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", conversationHandler.Create)
	mux.HandleFunc("GET /api/conversations", conversationHandler.List)
	mux.HandleFunc("GET /api/conversations/{id}", conversationHandler.Get)
	mux.HandleFunc("PUT /api/conversations/{id}/active-node", conversationHandler.SetActiveNode)
	mux.HandleFunc("POST /api/conversations/{id}/nodes", nodeHandler.CreateMessage)
	mux.HandleFunc("PATCH /api/nodes/{id}", nodeHandler.EditNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", nodeHandler.DeleteSubtree)
	mux.HandleFunc("GET /api/nodes/{id}/path", nodeHandler.GetPath)
	mux.HandleFunc("GET /api/conversations/{id}/switch", nodeHandler.GetSwitchSteps)
	mux.HandleFunc("GET /api/conversations/{id}/turns", treeHandler.GetTurns)
	mux.HandleFunc("GET /api/conversations/{id}/layout", treeHandler.GetLayout)
	mux.HandleFunc("GET /api/conversations/{id}/export", importExportHandler.Export)
	mux.HandleFunc("POST /api/import", importExportHandler.Import)

	return &testServer{mux: mux, store: store}
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req = httputil.WithUserID(req, userID)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestConversationAndNodeFlow(t *testing.T) {
	ts := newTestServer(t)

	// Create a conversation.
	rec := ts.do(t, "POST", "/api/conversations", "alice", map[string]interface{}{
		"title": "branching test",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create conversation status = %d, body %s", rec.Code, rec.Body.String())
	}
	conv := decode[models.Conversation](t, rec)

	// Root message.
	rec = ts.do(t, "POST", "/api/conversations/"+conv.ID+"/nodes", "alice", map[string]interface{}{
		"text": "first question",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create root status = %d, body %s", rec.Code, rec.Body.String())
	}
	root := decode[models.Node](t, rec)

	// Branch under the root.
	rec = ts.do(t, "POST", "/api/conversations/"+conv.ID+"/nodes", "alice", map[string]interface{}{
		"parent_id": root.ID,
		"text":      "follow-up",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create branch status = %d, body %s", rec.Code, rec.Body.String())
	}
	branch := decode[models.Node](t, rec)

	// Path ends at the branch.
	rec = ts.do(t, "GET", "/api/nodes/"+branch.ID+"/path", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get path status = %d", rec.Code)
	}
	path := decode[[]models.Node](t, rec)
	if len(path) != 2 || path[0].ID != root.ID || path[1].ID != branch.ID {
		t.Errorf("path = %v, want [root branch]", path)
	}

	// Edit in place.
	rec = ts.do(t, "PATCH", "/api/nodes/"+branch.ID, "alice", map[string]interface{}{
		"text": "revised follow-up",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body %s", rec.Code, rec.Body.String())
	}
	edited := decode[models.Node](t, rec)
	if edited.Text != "revised follow-up" {
		t.Errorf("edited text = %q", edited.Text)
	}

	// Another user cannot see the conversation.
	rec = ts.do(t, "GET", "/api/conversations/"+conv.ID, "mallory", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user get status = %d, want 404", rec.Code)
	}

	// Delete the branch subtree.
	rec = ts.do(t, "DELETE", "/api/nodes/"+branch.ID, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	result := decode[map[string]int64](t, rec)
	if result["removed"] != 1 {
		t.Errorf("removed = %d, want 1", result["removed"])
	}
}

func TestTurnsAndLayoutEndpoints(t *testing.T) {
	ts := newTestServer(t)
	conv := seedTree(t, ts.store)

	rec := ts.do(t, "GET", "/api/conversations/"+conv.ID+"/turns", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("turns status = %d", rec.Code)
	}
	turns := decode[struct {
		Turns    map[string]models.Turn `json:"turns"`
		Roots    []string               `json:"roots"`
		Selected map[string]string      `json:"selected"`
	}](t, rec)
	if len(turns.Roots) != 1 || turns.Roots[0] != "u1" {
		t.Errorf("roots = %v, want [u1]", turns.Roots)
	}
	if turns.Selected["u1"] != "u3" {
		t.Errorf("selected child of u1 = %q, want u3", turns.Selected["u1"])
	}

	rec = ts.do(t, "GET", "/api/conversations/"+conv.ID+"/layout?x=100&y=200", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("layout status = %d", rec.Code)
	}
	nodes := decode[[]layout.Node](t, rec)
	if len(nodes) != 3 {
		t.Fatalf("layout nodes = %d, want 3", len(nodes))
	}
	for _, n := range nodes {
		if n.ID == "u1" && (n.X != 100 || n.Y != 200) {
			t.Errorf("root placed at (%v, %v), want origin (100, 200)", n.X, n.Y)
		}
	}
}

func TestSwitchStepsEndpointValidation(t *testing.T) {
	ts := newTestServer(t)
	conv := seedTree(t, ts.store)

	rec := ts.do(t, "GET", "/api/conversations/"+conv.ID+"/switch?from=u2", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing to param status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, "GET", "/api/conversations/"+conv.ID+"/switch?from=u2&to=u3", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("switch status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestExportEndpointFormats(t *testing.T) {
	ts := newTestServer(t)
	conv := seedTree(t, ts.store)

	rec := ts.do(t, "GET", "/api/conversations/"+conv.ID+"/export?format=markdown", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("markdown export status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "- **user:**") {
		t.Errorf("markdown export missing bullets:\n%s", rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/conversations/"+conv.ID+"/export?format=mermaid", "alice", nil)
	if !strings.HasPrefix(rec.Body.String(), "graph TD") {
		t.Errorf("mermaid export missing header:\n%s", rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/conversations/"+conv.ID+"/export?format=csv", "alice", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d, want 400", rec.Code)
	}
}

func TestImportEndpointRejectsWrongVersion(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/api/import", "alice", map[string]interface{}{
		"payload": map[string]interface{}{
			"version": 2,
			"nodes": []map[string]interface{}{
				{"id": "r", "role": "user", "text": "q"},
			},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong version status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}

// seedTree stores u1 -> r1 -> {u2, u3} owned by alice.
func seedTree(t *testing.T, store *memory.Store) *models.Conversation {
	t.Helper()
	ctx := context.Background()

	conv := &models.Conversation{OwnerID: "alice", Title: "seeded"}
	if err := store.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	nodes := []models.Node{
		{ID: "u1", Role: models.RoleUser, Text: "q1", CreatedAt: base},
		{ID: "r1", ParentID: strPtr("u1"), Role: models.RoleAssistant, Text: "a1", CreatedAt: base.Add(time.Minute)},
		{ID: "u2", ParentID: strPtr("r1"), Role: models.RoleUser, Text: "q2", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "u3", ParentID: strPtr("r1"), Role: models.RoleUser, Text: "q3", CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range nodes {
		nodes[i].ConversationID = conv.ID
		if err := store.CreateNode(ctx, &nodes[i]); err != nil {
			t.Fatalf("CreateNode(%s): %v", nodes[i].ID, err)
		}
	}
	return conv
}

func strPtr(s string) *string { return &s }
