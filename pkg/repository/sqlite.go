package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT NOT NULL,
	vector     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

// SQLite is the local default repository, one file per deployment.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the embedding database at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open embedding database", goerr.V("path", path))
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to initialize embedding schema")
	}
	return &SQLite{db: db}, nil
}

func (r *SQLite) PutEmbedding(ctx context.Context, emb *model.Embedding) (int64, error) {
	vector, err := json.Marshal(emb.Vector)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to encode vector")
	}

	createdAt := emb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO embeddings (text, vector, created_at) VALUES (?, ?, ?)",
		emb.Text, string(vector), createdAt)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to insert embedding")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read assigned id")
	}
	return id, nil
}

func (r *SQLite) GetEmbedding(ctx context.Context, id int64) (*model.Embedding, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, text, vector, created_at FROM embeddings WHERE id = ?", id)

	emb, err := scanEmbedding(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrEmbeddingNotFound, "no such embedding", goerr.V("id", id))
	}
	if err != nil {
		return nil, err
	}
	return emb, nil
}

func (r *SQLite) ListEmbeddings(ctx context.Context) ([]*model.Embedding, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, text, vector, created_at FROM embeddings ORDER BY id")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query embeddings")
	}
	defer rows.Close()

	var out []*model.Embedding
	for rows.Next() {
		emb, err := scanEmbedding(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate embeddings")
	}
	return out, nil
}

func (r *SQLite) DeleteEmbedding(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM embeddings WHERE id = ?", id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete embedding", goerr.V("id", id))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to read delete result")
	}
	if affected == 0 {
		return goerr.Wrap(ErrEmbeddingNotFound, "no such embedding", goerr.V("id", id))
	}
	return nil
}

func (r *SQLite) Close() error {
	return r.db.Close()
}

func scanEmbedding(scan func(dest ...any) error) (*model.Embedding, error) {
	var (
		emb       model.Embedding
		rawVector string
	)
	if err := scan(&emb.ID, &emb.Text, &rawVector, &emb.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to scan embedding row")
	}
	if err := json.Unmarshal([]byte(rawVector), &emb.Vector); err != nil {
		return nil, goerr.Wrap(err, "corrupt vector column", goerr.V("id", emb.ID))
	}
	return &emb, nil
}
