package storage

import (
	"context"
	"errors"

	"backend-busboxd/internal/db"

	"github.com/jackc/pgx/v5"
)

// Schema is the table the Postgres backend expects.
const Schema = `
CREATE TABLE IF NOT EXISTS blobs (
	name       TEXT PRIMARY KEY,
	content    BYTEA NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres keeps blobs as rows of the blobs table.
type Postgres struct {
	db db.Querier
}

func NewPostgres(db db.Querier) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the blobs table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return &RemoteError{Op: "migrate", Name: "blobs", Err: err}
	}
	return nil
}

func (p *Postgres) Fetch(ctx context.Context, name string) ([]byte, error) {
	var content []byte
	err := p.db.QueryRow(ctx, `SELECT content FROM blobs WHERE name=$1`, name).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &RemoteError{Op: "fetch", Name: name, Err: err}
	}
	return content, nil
}

func (p *Postgres) Commit(ctx context.Context, name string, data []byte, message string) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE blobs SET content=$2, message=$3, updated_at=now()
		WHERE name=$1
	`, name, data, message)
	if err != nil {
		return &RemoteError{Op: "commit", Name: name, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, name string, data []byte, message string) error {
	tag, err := p.db.Exec(ctx, `
		INSERT INTO blobs (name, content, message)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO NOTHING
	`, name, data, message)
	if err != nil {
		return &RemoteError{Op: "create", Name: name, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}
