package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DBTX abstracts the pgx calls shared between the connection pool and an open
// transaction, so the same query code serves both.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a single jsonb documents table.
// Collections are a column, not tables, keeping the schemaless document model
// intact while the database enforces (collection, id) uniqueness.
type PostgresStore struct {
	db   DBTX
	pool *pgxpool.Pool // nil inside a transaction
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)
var _ Transactional = (*PostgresStore)(nil)

// NewPostgresStore initializes a PostgreSQL connection pool, runs pending
// migrations, and returns the store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{db: pool, pool: pool, now: time.Now}, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Close releases the connection pool. Calling Close on a transactional view
// is a no-op.
func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Get returns the document with the given id, or ErrNotFound.
func (p *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := p.db.QueryRow(ctx,
		"SELECT data FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	).Scan(&raw)

	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

// Query returns all documents in the collection matching q. Filters translate
// to jsonb comparisons: equality is exact jsonb equality (which also covers
// array-valued fields such as the participant pair), and array-contains uses
// jsonb containment.
func (p *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString("SELECT id, data FROM documents WHERE collection = $1")

	args := []any{collection}

	for _, f := range q.Filters {
		encoded, err := encodeFilterValue(f.Value)
		if err != nil {
			return nil, err
		}

		args = append(args, f.Field)
		fieldArg := len(args)
		args = append(args, encoded)
		valueArg := len(args)

		switch f.Op {
		case OpEqual:
			fmt.Fprintf(&sb, " AND data->$%d = $%d::jsonb", fieldArg, valueArg)
		case OpArrayContains:
			fmt.Fprintf(&sb, " AND data->$%d @> $%d::jsonb", fieldArg, valueArg)
		default:
			return nil, fmt.Errorf("store: unsupported filter op %d", f.Op)
		}
	}

	if q.OrderBy != "" {
		if q.StartAfter != "" {
			args = append(args, q.OrderBy)
			fieldArg := len(args)
			args = append(args, q.StartAfter)
			valueArg := len(args)
			cmp := ">"
			if q.Descending {
				cmp = "<"
			}
			fmt.Fprintf(&sb, " AND data->>$%d %s $%d", fieldArg, cmp, valueArg)
		}

		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY data->>$%d %s", len(args), dir)
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	rows, err := p.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", collection, err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}

	return docs, rows.Err()
}

// Put creates or fully replaces the document with the given id.
func (p *PostgresStore) Put(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := p.encodeFields(fields)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("store: put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Create writes the document only if the id is not yet taken. The primary key
// on (collection, id) is what makes create-or-get style callers race-safe.
func (p *PostgresStore) Create(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := p.encodeFields(fields)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(ctx,
		"INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)",
		collection, id, raw,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("store: create %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges the given partial fields into an existing document using a
// shallow jsonb merge, matching the partial-update semantics of the interface.
func (p *PostgresStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	raw, err := p.encodeFields(fields)
	if err != nil {
		return err
	}

	tag, err := p.db.Exec(ctx,
		"UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2",
		collection, id, raw,
	)
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document. Deleting an absent document is a no-op.
func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := p.db.Exec(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2",
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// RunTransaction executes fn inside a database transaction. The store view
// handed to fn shares this store's clock but routes all calls through the
// open transaction.
func (p *PostgresStore) RunTransaction(ctx context.Context, fn func(tx Store) error) error {
	if p.pool == nil {
		// Already inside a transaction; pgx does not nest them.
		return fn(p)
	}

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{db: tx, now: p.now})
	})
}

// encodeFields resolves server timestamps and marshals the field map to JSON.
func (p *PostgresStore) encodeFields(fields Fields) ([]byte, error) {
	raw, err := json.Marshal(resolveValues(fields, p.now()))
	if err != nil {
		return nil, fmt.Errorf("store: encode fields: %w", err)
	}
	return raw, nil
}

// encodeFilterValue marshals a filter value for a ::jsonb comparison.
func encodeFilterValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: encode filter value: %w", err)
	}
	return string(raw), nil
}

func decodeFields(raw []byte) (Fields, error) {
	var fields Fields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	return fields, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint
// violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
