// Package sse provides the primitives for Server-Sent Events
// responses: an event writer over http.ResponseWriter and a pluggable
// keep-alive strategy.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultKeepAliveInterval balances proxy idle timeouts against
// traffic: most proxies cut idle streams after 30 to 60 seconds.
const DefaultKeepAliveInterval = 10 * time.Second

// Writer emits SSE frames and flushes after each one so the client
// sees deltas as they arrive, not when a buffer fills.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares w for an SSE response and returns the writer.
// Returns an error if the ResponseWriter cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent writes a named event with a JSON-encoded payload.
// Returns an error once the client has disconnected.
func (s *Writer) WriteEvent(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write event failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment line and flushes. Comment lines
// are ignored by clients; a write error means the connection is gone.
func (s *Writer) WriteKeepAlive() error {
	if _, err := fmt.Fprintf(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()

	// Zero-byte write to detect closed connections between events.
	if _, err := s.w.Write([]byte{}); err != nil {
		return fmt.Errorf("connection closed: %w", err)
	}
	return nil
}
