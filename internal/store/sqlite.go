package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/store/migrations"
)

// SQLite keeps items in a single-file database. The pool is pinned to one
// connection, so a transaction is a full read-modify-write under one lock
// and partial updates share the Memory store's patch semantics.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	return NewSQLiteWithClock(ctx, path, time.Now)
}

func NewSQLiteWithClock(ctx context.Context, path string, now func() time.Time) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db, now: now}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// DB shares the migrated handle so the leaderboard lives in the same file.
func (s *SQLite) DB() *sql.DB { return s.db }

func (s *SQLite) nowNano() int64 { return s.now().UnixNano() }

func (s *SQLite) Get(ctx context.Context, key string) (Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM room_documents WHERE key = ? AND expires_at > ?`, key, s.nowNano(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument([]byte(raw))
}

func (s *SQLite) Put(ctx context.Context, key string, doc Document, expiresAt time.Time) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO room_documents (key, doc, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET doc = excluded.doc, expires_at = excluded.expires_at`,
		key, string(data), expiresAt.UnixNano())
	return err
}

func (s *SQLite) PutIfAbsent(ctx context.Context, key string, doc Document, expiresAt time.Time) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO room_documents (key, doc, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET doc = excluded.doc, expires_at = excluded.expires_at
		WHERE room_documents.expires_at <= ?`,
		key, string(data), expiresAt.UnixNano(), s.nowNano())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *SQLite) UpdatePartial(ctx context.Context, key string, patch Patch, conds ...Condition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT doc FROM room_documents WHERE key = ? AND expires_at > ?`, key, s.nowNano(),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return err
	}
	if err := applyPatch(doc, patch, conds); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE room_documents SET doc = ? WHERE key = ?`, string(data), key); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM room_documents WHERE key = ?`, key)
	return err
}

func (s *SQLite) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM room_documents WHERE expires_at <= ?`, s.nowNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
