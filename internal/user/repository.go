package user

import (
	"context"
	"database/sql"
	"errors"

	"pm-relay/internal/db"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert inserts the user or refreshes its display attributes (last write wins).
func (r *Repository) Upsert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, first_name, last_name, username)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    username = EXCLUDED.username,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.FirstName, u.LastName, u.Username)
	return db.Wrap("upsert user", err)
}

func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	query := "SELECT id, first_name, last_name, username, created_at, updated_at FROM users WHERE id = $1"

	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Wrap("get user", err)
	}

	return u, nil
}
