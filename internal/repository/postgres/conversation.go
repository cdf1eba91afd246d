package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbor/internal/domain"
	"arbor/internal/domain/models"
	"arbor/internal/domain/repositories"
)

// PostgresConversationRepository implements the ConversationRepository
// interface using PostgreSQL.
type PostgresConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new PostgresConversationRepository
func NewConversationRepository(config *RepositoryConfig) repositories.ConversationRepository {
	return &PostgresConversationRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const conversationColumns = "id, owner_id, title, is_public, active_node_id, created_at, updated_at, deleted_at"

func scanConversationRow(row scanner) (*models.Conversation, error) {
	var conv models.Conversation
	err := row.Scan(
		&conv.ID,
		&conv.OwnerID,
		&conv.Title,
		&conv.IsPublic,
		&conv.ActiveNodeID,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation creates a new conversation
func (r *PostgresConversationRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
		conv.UpdatedAt = now
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, title, is_public, active_node_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		conv.ID,
		conv.OwnerID,
		conv.Title,
		conv.IsPublic,
		conv.ActiveNodeID,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		if IsPgDuplicateError(err) {
			return fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create conversation: %w", err)
	}

	return nil
}

// GetConversation retrieves a conversation by ID (scoped to owner)
func (r *PostgresConversationRepository) GetConversation(ctx context.Context, conversationID, ownerID string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`, conversationColumns, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	conv, err := scanConversationRow(executor.QueryRow(ctx, query, conversationID, ownerID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	return conv, nil
}

// ListConversations retrieves all conversations for an owner
func (r *PostgresConversationRepository) ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, conversationColumns, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

// UpdateConversation updates a conversation's mutable fields
func (r *PostgresConversationRepository) UpdateConversation(ctx context.Context, conv *models.Conversation) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET title = $3, is_public = $4, active_node_id = $5, updated_at = $6
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`, r.tables.Conversations)

	conv.UpdatedAt = time.Now().UTC()

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query,
		conv.ID,
		conv.OwnerID,
		conv.Title,
		conv.IsPublic,
		conv.ActiveNodeID,
		conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conv.ID, domain.ErrNotFound)
	}

	return nil
}

// UpdateActiveNode updates only the active_node_id field
func (r *PostgresConversationRepository) UpdateActiveNode(ctx context.Context, conversationID, ownerID, nodeID string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET active_node_id = $3, updated_at = $4
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`, r.tables.Conversations)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, conversationID, ownerID, nodeID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update active node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	return nil
}

// DeleteConversation soft-deletes a conversation
func (r *PostgresConversationRepository) DeleteConversation(ctx context.Context, conversationID, ownerID string) (*models.Conversation, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
		RETURNING %s
	`, r.tables.Conversations, conversationColumns)

	executor := GetExecutor(ctx, r.pool)
	conv, err := scanConversationRow(executor.QueryRow(ctx, query, conversationID, ownerID, time.Now().UTC()))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("delete conversation: %w", err)
	}

	return conv, nil
}
