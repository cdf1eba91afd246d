package models

import (
	"time"
)

// ExportVersion is the serialization format version this build reads
// and writes. Import rejects any other version.
const ExportVersion = 1

// ExportPayload is the versioned JSON export/import format for a
// conversation tree.
type ExportPayload struct {
	Version      int                `json:"version"`
	Conversation ExportConversation `json:"conversation"`
	Nodes        []ExportNode       `json:"nodes"`
}

// ExportConversation carries the conversation header in an export
type ExportConversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ExportNode is a single node in an export payload. IDs are remapped
// on import, so they only need to be unique within the payload.
type ExportNode struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parent_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
