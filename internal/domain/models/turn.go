package models

import (
	"time"
)

// Turn is a derived chat pair: one user node together with its chosen
// assistant reply. Turns are never persisted; they are recomputed from
// the node tree for display and layout.
//
// ID equals the underlying user node's ID. Response is empty while the
// assistant reply is still pending.
type Turn struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Response   string    `json:"response"`
	ResponseID *string   `json:"response_id,omitempty"` // assistant node paired with this turn
	ParentID   *string   `json:"parent_id,omitempty"`   // nearest ancestor turn
	Children   []string  `json:"children"`
	CreatedAt  time.Time `json:"created_at"`
}
