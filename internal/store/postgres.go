package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/DoyleJ11/monkey-rooms-backend/internal/store/migrations"
)

// Postgres keeps each item as a JSONB row. Numbers in JSONB are exact
// decimals, and partial updates are a single UPDATE of jsonb_set calls.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	_, err = migrations.Up(ctx, db, migrations.Postgres)
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT doc FROM room_documents WHERE key = $1 AND expires_at > now()`, key,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeDocument(raw)
}

func (p *Postgres) Put(ctx context.Context, key string, doc Document, expiresAt time.Time) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO room_documents (key, doc, expires_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, expires_at = EXCLUDED.expires_at`,
		key, string(data), expiresAt)
	return err
}

func (p *Postgres) PutIfAbsent(ctx context.Context, key string, doc Document, expiresAt time.Time) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	// An expired row still holds the key until the sweeper runs; it may be replaced.
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO room_documents (key, doc, expires_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, expires_at = EXCLUDED.expires_at
		WHERE room_documents.expires_at <= now()`,
		key, string(data), expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (p *Postgres) UpdatePartial(ctx context.Context, key string, patch Patch, conds ...Condition) error {
	query, args, err := buildUpdate(key, patch, conds)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM room_documents WHERE key = $1 AND expires_at > now())`, key,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConditionFailed
}

// buildUpdate nests one jsonb_set per patched path. Paths are sorted so
// the statement text is stable for a given set of fields.
func buildUpdate(key string, patch Patch, conds []Condition) (string, []any, error) {
	if len(patch) == 0 {
		return "", nil, errors.New("empty patch")
	}
	paths := make([]string, 0, len(patch))
	for path := range patch {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	args := []any{key}
	expr := "doc"
	for _, path := range paths {
		parts, err := splitPath(path)
		if err != nil {
			return "", nil, err
		}
		value, err := json.Marshal(patch[path])
		if err != nil {
			return "", nil, fmt.Errorf("patch %q: %w", path, err)
		}
		args = append(args, parts, string(value))
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)", expr, len(args)-1, len(args))
	}

	where := []string{"key = $1", "expires_at > now()"}
	for _, c := range conds {
		parts, err := splitPath(c.Path)
		if err != nil {
			return "", nil, err
		}
		args = append(args, parts)
		where = append(where, fmt.Sprintf("coalesce(jsonb_typeof(doc #> $%d::text[]), 'null') = 'null'", len(args)))
	}

	query := fmt.Sprintf("UPDATE room_documents SET doc = %s WHERE %s", expr, strings.Join(where, " AND "))
	return query, args, nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM room_documents WHERE key = $1`, key)
	return err
}

func (p *Postgres) Sweep(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM room_documents WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
