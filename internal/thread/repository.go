package thread

import (
	"context"
	"database/sql"
	"errors"

	"pm-relay/internal/db"
)

var ErrNotFound = errors.New("thread not found")

// Repository is the thread directory backed by PostgreSQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const threadColumns = "id, user_id, thread_id, label, origin_group_id, created_at"

func (r *Repository) GetByUser(ctx context.Context, userID int64) (*Thread, error) {
	query := "SELECT " + threadColumns + " FROM threads WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1"
	return r.scanOne(ctx, "get thread by user", query, userID)
}

func (r *Repository) GetByID(ctx context.Context, threadID int) (*Thread, error) {
	query := "SELECT " + threadColumns + " FROM threads WHERE thread_id = $1"
	return r.scanOne(ctx, "get thread by id", query, threadID)
}

// Upsert inserts the thread or updates owner, label and group in place when
// the thread id already exists.
func (r *Repository) Upsert(ctx context.Context, t *Thread) error {
	query := `
		INSERT INTO threads (user_id, thread_id, label, origin_group_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (thread_id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    label = EXCLUDED.label,
		    origin_group_id = EXCLUDED.origin_group_id
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, t.UserID, t.ThreadID, t.Label, t.OriginGroupID).Scan(&t.ID, &t.CreatedAt)
	return db.Wrap("upsert thread", err)
}

// Delete removes the thread row and its message correspondences. The user
// row is preserved so the user can start a new conversation.
func (r *Repository) Delete(ctx context.Context, threadID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Wrap("delete thread", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE thread_id = $1", threadID); err != nil {
		return db.Wrap("delete thread messages", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM threads WHERE thread_id = $1", threadID)
	if err != nil {
		return db.Wrap("delete thread", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return db.Wrap("delete thread commit", tx.Commit())
}

// List returns the directory, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*Thread, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := "SELECT " + threadColumns + " FROM threads ORDER BY created_at DESC LIMIT $1"
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, db.Wrap("list threads", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		t := &Thread{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.ThreadID, &t.Label, &t.OriginGroupID, &t.CreatedAt); err != nil {
			return nil, db.Wrap("list threads", err)
		}
		threads = append(threads, t)
	}
	return threads, db.Wrap("list threads", rows.Err())
}

func (r *Repository) scanOne(ctx context.Context, op, query string, arg any) (*Thread, error) {
	t := &Thread{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&t.ID, &t.UserID, &t.ThreadID, &t.Label, &t.OriginGroupID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Wrap(op, err)
	}
	return t, nil
}
