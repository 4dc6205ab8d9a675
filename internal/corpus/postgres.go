package corpus

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the poems table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS poems (
    id      TEXT PRIMARY KEY,
    title   TEXT NOT NULL DEFAULT '',
    author  TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_poems_author ON poems(author);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] using the given connection or
// pool. Call [PostgresStore.Migrate] once before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the poems table and its
// indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

// Insert adds a poem. Inserting an existing ID replaces the previous row,
// which makes seeding idempotent.
func (s *PostgresStore) Insert(ctx context.Context, p Poem) error {
	const query = `
		INSERT INTO poems (id, title, author, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, author = EXCLUDED.author, content = EXCLUDED.content`

	if _, err := s.db.Exec(ctx, query, p.ID, p.Title, p.Author, p.Content); err != nil {
		return unavailable("insert", err)
	}
	return nil
}

// FindByContent implements [Store].
func (s *PostgresStore) FindByContent(ctx context.Context, substring string) (*Poem, error) {
	if substring == "" {
		return nil, nil
	}

	const query = `
		SELECT id, title, author, content
		FROM poems
		WHERE position($1 in content) > 0
		LIMIT 1`

	var p Poem
	err := s.db.QueryRow(ctx, query, substring).Scan(&p.ID, &p.Title, &p.Author, &p.Content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("find by content", err)
	}
	return &p, nil
}

// FindByCharacter implements [Store].
func (s *PostgresStore) FindByCharacter(ctx context.Context, char string, limit int) ([]Poem, error) {
	const query = `
		SELECT id, title, author, content
		FROM poems
		WHERE position($1 in content) > 0
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, char, limit)
	if err != nil {
		return nil, unavailable("find by character", err)
	}
	return scanPoems(rows, "find by character")
}

// FindByAuthor implements [Store].
func (s *PostgresStore) FindByAuthor(ctx context.Context, author string, limit int) ([]Poem, error) {
	const query = `
		SELECT id, title, author, content
		FROM poems
		WHERE position($1 in author) > 0
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, author, limit)
	if err != nil {
		return nil, unavailable("find by author", err)
	}
	return scanPoems(rows, "find by author")
}

// RandomPoems implements [Store].
func (s *PostgresStore) RandomPoems(ctx context.Context, limit int) ([]Poem, error) {
	const query = `
		SELECT id, title, author, content
		FROM poems
		ORDER BY random()
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, unavailable("random poems", err)
	}
	return scanPoems(rows, "random poems")
}

// Ping verifies database connectivity; used by the readiness probe.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// scanPoems drains rows into a slice, closing them when done.
func scanPoems(rows pgx.Rows, op string) ([]Poem, error) {
	defer rows.Close()

	var out []Poem
	for rows.Next() {
		var p Poem
		if err := rows.Scan(&p.ID, &p.Title, &p.Author, &p.Content); err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}
