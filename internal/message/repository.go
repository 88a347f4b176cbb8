package message

import (
	"context"
	"database/sql"

	"pm-relay/internal/db"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append adds one correspondence row. Rows are never updated.
func (r *Repository) Append(ctx context.Context, c *Correspondence) error {
	query := `
		INSERT INTO messages (user_id, thread_id, user_message_id, group_message_id, direction)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, c.UserID, c.ThreadID, c.UserMessageID, c.GroupMessageID, c.Direction).Scan(&c.ID, &c.CreatedAt)
	return db.Wrap("append message", err)
}

func (r *Repository) ListByThread(ctx context.Context, threadID int, limit int) ([]*Correspondence, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT id, user_id, thread_id, user_message_id, group_message_id, direction, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, threadID, limit)
	if err != nil {
		return nil, db.Wrap("list messages", err)
	}
	defer rows.Close()

	var out []*Correspondence
	for rows.Next() {
		c := &Correspondence{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.ThreadID, &c.UserMessageID, &c.GroupMessageID, &c.Direction, &c.CreatedAt); err != nil {
			return nil, db.Wrap("list messages", err)
		}
		out = append(out, c)
	}
	return out, db.Wrap("list messages", rows.Err())
}
