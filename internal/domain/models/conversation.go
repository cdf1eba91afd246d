package models

import (
	"time"
)

// Conversation represents a conversation session owning one node tree
type Conversation struct {
	ID           string     `json:"id" db:"id"`
	OwnerID      string     `json:"owner_id" db:"owner_id"`
	Title        string     `json:"title" db:"title"`
	IsPublic     bool       `json:"is_public" db:"is_public"`
	ActiveNodeID *string    `json:"active_node_id,omitempty" db:"active_node_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
