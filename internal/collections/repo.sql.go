package collections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cobranza-crm/cobranza/internal/crm"
)

const actionColumns = `id, client_id, client_name, action_type, description, follow_up_date, completed, completed_at, user_id, created_at`

// Repository provides PostgreSQL backed persistence for collection actions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ClientName returns the client's display name.
func (r *Repository) ClientName(ctx context.Context, clientID uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM clients WHERE id = $1`, clientID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", crm.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("collections: client name: %w", err)
	}
	return name, nil
}

// Insert stores a new action and returns the persisted row.
func (r *Repository) Insert(ctx context.Context, action Action) (*Action, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO collection_actions
(client_id, client_name, action_type, description, follow_up_date, completed, user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+actionColumns,
		action.ClientID, action.ClientName, action.Type, action.Description,
		action.FollowUpDate, action.Completed, action.UserID, action.CreatedAt)
	inserted, err := scanAction(row)
	if err != nil {
		return nil, fmt.Errorf("collections: insert action: %w", err)
	}
	return inserted, nil
}

// Complete flips the completed flag and stamps completed_at.
func (r *Repository) Complete(ctx context.Context, actionID uuid.UUID, completedAt time.Time) (*Action, error) {
	row := r.pool.QueryRow(ctx, `UPDATE collection_actions
SET completed = TRUE, completed_at = $1
WHERE id = $2
RETURNING `+actionColumns, completedAt, actionID)
	action, err := scanAction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, crm.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("collections: complete action: %w", err)
	}
	return action, nil
}

// ListByClient returns the client's actions ordered by follow-up date.
func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Action, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+actionColumns+`
FROM collection_actions
WHERE client_id = $1
ORDER BY follow_up_date, created_at, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("collections: list actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("collections: scan action: %w", err)
		}
		actions = append(actions, *action)
	}
	return actions, rows.Err()
}

func scanAction(row pgx.Row) (*Action, error) {
	var action Action
	err := row.Scan(&action.ID, &action.ClientID, &action.ClientName, &action.Type, &action.Description,
		&action.FollowUpDate, &action.Completed, &action.CompletedAt, &action.UserID, &action.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &action, nil
}
