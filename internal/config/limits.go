package config

const (
	// MaxConversationTitleLength is the maximum length for conversation
	// titles. Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxConversationTitleLength = 255

	// MaxMessageLength is the maximum length of a single node's text.
	MaxMessageLength = 100_000

	// MaxImportNodes caps how many nodes one import payload may carry.
	MaxImportNodes = 10_000

	// MaxImportBody caps the import request body size in bytes.
	MaxImportBody = 25 << 20
)
