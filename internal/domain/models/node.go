package models

import (
	"time"
)

// Node roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Node represents a single utterance in a conversation tree.
// Nodes form a rooted tree via ParentID: exactly one node per
// conversation has ParentID == nil (the root).
type Node struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	ParentID       *string   `json:"parent_id,omitempty" db:"parent_id"`
	Role           string    `json:"role" db:"role"` // "system", "user" or "assistant"
	Text           string    `json:"text" db:"text"`
	Deleted        bool      `json:"deleted,omitempty" db:"deleted"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// IsRoot reports whether the node is the root of its conversation tree.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}
