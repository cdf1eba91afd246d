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

// MaxRecursionDepth bounds the recursive CTE for path queries.
const MaxRecursionDepth = 10000

// PostgresNodeRepository implements the NodeRepository interface using
// PostgreSQL.
type PostgresNodeRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewNodeRepository creates a new PostgresNodeRepository
func NewNodeRepository(config *RepositoryConfig) repositories.NodeRepository {
	return &PostgresNodeRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const nodeColumns = "id, conversation_id, parent_id, role, text, deleted, created_at"

// scanner defines the interface for row scanning (implemented by both
// pgx.Row and pgx.Rows).
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNodeRow(row scanner) (*models.Node, error) {
	var node models.Node
	err := row.Scan(
		&node.ID,
		&node.ConversationID,
		&node.ParentID,
		&node.Role,
		&node.Text,
		&node.Deleted,
		&node.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// GetNodesByConversation retrieves every node of a conversation,
// soft-deleted included, ordered by created_at then id.
func (r *PostgresNodeRepository) GetNodesByConversation(ctx context.Context, conversationID string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE conversation_id = $1
		ORDER BY created_at, id
	`, nodeColumns, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get nodes by conversation: %w", err)
	}
	defer rows.Close()

	nodes := []models.Node{}
	for rows.Next() {
		node, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	return nodes, nil
}

// GetNode retrieves a node by ID
func (r *PostgresNodeRepository) GetNode(ctx context.Context, nodeID string) (*models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, nodeColumns, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	node, err := scanNodeRow(executor.QueryRow(ctx, query, nodeID))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}

	return node, nil
}

// GetNodePath retrieves the chain from a node to its root via a
// recursive CTE, returned root-first. A dangling parent reference
// simply stops the recursion, which matches the tolerant path-walk
// semantics of the engine.
func (r *PostgresNodeRepository) GetNodePath(ctx context.Context, nodeID string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE node_path AS (
			SELECT %s, 1 AS depth
			FROM %s
			WHERE id = $1

			UNION ALL

			SELECT n.id, n.conversation_id, n.parent_id, n.role, n.text, n.deleted, n.created_at, np.depth + 1
			FROM %s n
			INNER JOIN node_path np ON n.id = np.parent_id
			WHERE np.depth < %d
		)
		SELECT %s
		FROM node_path
		WHERE NOT deleted
		ORDER BY depth DESC
	`, nodeColumns, r.tables.Nodes, r.tables.Nodes, MaxRecursionDepth, nodeColumns)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("get node path: %w", err)
	}
	defer rows.Close()

	nodes := []models.Node{}
	for rows.Next() {
		node, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node path: %w", err)
	}

	return nodes, nil
}

// GetChildren retrieves the direct children of a node
func (r *PostgresNodeRepository) GetChildren(ctx context.Context, nodeID string) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE parent_id = $1 AND NOT deleted
		ORDER BY created_at, id
	`, nodeColumns, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("get children: %w", err)
	}
	defer rows.Close()

	nodes := []models.Node{}
	for rows.Next() {
		node, err := scanNodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}

	return nodes, nil
}

// CreateNode creates a new node. Validates the parent exists in the
// same conversation when one is given.
func (r *PostgresNodeRepository) CreateNode(ctx context.Context, node *models.Node) error {
	executor := GetExecutor(ctx, r.pool)

	if node.ParentID != nil {
		var parentConv string
		checkQuery := fmt.Sprintf(`SELECT conversation_id FROM %s WHERE id = $1`, r.tables.Nodes)
		err := executor.QueryRow(ctx, checkQuery, *node.ParentID).Scan(&parentConv)
		if err != nil {
			if IsPgNoRowsError(err) {
				return fmt.Errorf("parent node %s: %w", *node.ParentID, domain.ErrNotFound)
			}
			return fmt.Errorf("validate parent node: %w", err)
		}
		if parentConv != node.ConversationID {
			return fmt.Errorf("%w: parent node belongs to another conversation", domain.ErrValidation)
		}
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now().UTC()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, conversation_id, parent_id, role, text, deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.tables.Nodes)

	_, err := executor.Exec(ctx, query,
		node.ID,
		node.ConversationID,
		node.ParentID,
		node.Role,
		node.Text,
		node.Deleted,
		node.CreatedAt,
	)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("conversation %s: %w", node.ConversationID, domain.ErrNotFound)
		}
		if IsPgDuplicateError(err) {
			return fmt.Errorf("node %s: %w", node.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create node: %w", err)
	}

	return nil
}

// UpdateNodeText replaces a node's text in place
func (r *PostgresNodeRepository) UpdateNodeText(ctx context.Context, nodeID, text string) (*models.Node, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET text = $2
		WHERE id = $1
		RETURNING %s
	`, r.tables.Nodes, nodeColumns)

	executor := GetExecutor(ctx, r.pool)
	node, err := scanNodeRow(executor.QueryRow(ctx, query, nodeID, text))
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("node %s: %w", nodeID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update node text: %w", err)
	}

	return node, nil
}

// DeleteNodes removes the given nodes in one statement. Callers pass a
// complete subtree (typically collected by Index.Descendants) so no
// orphaned children can ever be observed.
func (r *PostgresNodeRepository) DeleteNodes(ctx context.Context, nodeIDs []string) (int64, error) {
	if len(nodeIDs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, r.tables.Nodes)

	executor := GetExecutor(ctx, r.pool)
	tag, err := executor.Exec(ctx, query, nodeIDs)
	if err != nil {
		return 0, fmt.Errorf("delete nodes: %w", err)
	}

	return tag.RowsAffected(), nil
}
