package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// MySQLKV stores documents in the kv_documents table (see migrations).
type MySQLKV struct {
	db *sqlx.DB
}

var _ KV = (*MySQLKV)(nil)

func NewMySQLKV(db *sqlx.DB) *MySQLKV {
	return &MySQLKV{db: db}
}

func (s *MySQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	var v []byte
	err := s.db.GetContext(ctx, &v, `SELECT doc FROM kv_documents WHERE doc_key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// Put upserts in a single statement.
func (s *MySQLKV) Put(ctx context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	const q = `
		INSERT INTO kv_documents (doc_key, doc, updated_at)
		VALUES (?, ?, NOW(3))
		ON DUPLICATE KEY UPDATE
		    doc        = VALUES(doc),
		    updated_at = VALUES(updated_at)
	`
	_, err := s.db.ExecContext(ctx, q, key, value)
	return err
}

func (s *MySQLKV) Close() error { return s.db.Close() }
