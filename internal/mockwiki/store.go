// Package mockwiki implements a small Confluence-compatible wiki
// server: a paginated search endpoint plus content CRUD, backed by
// SQLite. It exists for the example programs and for integration
// tests of the client.
package mockwiki

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Page is one wiki page as stored.
type Page struct {
	ID      string
	Type    string // "page" or "blogpost"
	Space   string
	Title   string
	Body    string
	Created time.Time
}

// schema contains the DDL for the mock wiki. Statements use
// IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL DEFAULT 'page',
		space      TEXT NOT NULL,
		title      TEXT NOT NULL,
		body       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_space ON pages(space)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_type ON pages(type)`,
}

// Store persists wiki pages in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) a SQLite database at dbPath. Use
// ":memory:" for an in-memory database (useful in tests).
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With("component", "mockwiki-store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreatePage inserts a page, assigning an ID when missing.
func (s *Store) CreatePage(ctx context.Context, p *Page) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Type == "" {
		p.Type = "page"
	}
	if p.Created.IsZero() {
		p.Created = time.Now().UTC()
	}
	s.logger.Debug("sql", "op", "insert", "table", "pages", "id", p.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (id, type, space, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Type, p.Space, p.Title, p.Body, p.Created.Format(time.RFC3339Nano),
	)
	return err
}

// GetPage returns the page with the given ID, or nil when absent.
func (s *Store) GetPage(ctx context.Context, id string) (*Page, error) {
	s.logger.Debug("sql", "op", "select", "table", "pages", "id", id)

	var p Page
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, space, title, body, created_at FROM pages WHERE id = ?`, id,
	).Scan(&p.ID, &p.Type, &p.Space, &p.Title, &p.Body, &created)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Created, _ = time.Parse(time.RFC3339Nano, created)
	return &p, nil
}

// UpdatePage replaces the mutable fields of an existing page.
func (s *Store) UpdatePage(ctx context.Context, p *Page) error {
	s.logger.Debug("sql", "op", "update", "table", "pages", "id", p.ID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE pages SET type = ?, space = ?, title = ?, body = ? WHERE id = ?`,
		p.Type, p.Space, p.Title, p.Body, p.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeletePage removes a page. Deleting an absent page returns
// sql.ErrNoRows.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "pages", "id", id)

	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Spaces returns the distinct space keys in creation order.
func (s *Store) Spaces(ctx context.Context) ([]string, error) {
	s.logger.Debug("sql", "op", "select_spaces", "table", "pages")

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT space FROM pages ORDER BY space`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spaces []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		spaces = append(spaces, key)
	}
	return spaces, rows.Err()
}

// cqlTerm matches one `field op value` clause of the supported CQL
// subset: type=page, space=KEY, title~"text", text~"text".
var cqlTerm = regexp.MustCompile(`^(type|space|title|text)\s*(=|~)\s*"?([^"]*)"?$`)

// cqlToSQL translates the supported CQL subset into a WHERE clause.
// Terms may be joined with AND; anything else is rejected.
func cqlToSQL(cql string) (string, []any, error) {
	cql = strings.TrimSpace(cql)
	if cql == "" {
		return "1=1", nil, nil
	}

	var clauses []string
	var args []any
	for _, term := range strings.Split(cql, " AND ") {
		m := cqlTerm.FindStringSubmatch(strings.TrimSpace(term))
		if m == nil {
			return "", nil, fmt.Errorf("could not parse cql term %q", strings.TrimSpace(term))
		}
		field, op, value := m[1], m[2], m[3]
		switch {
		case field == "type" && op == "=":
			clauses = append(clauses, "type = ?")
			args = append(args, value)
		case field == "space" && op == "=":
			clauses = append(clauses, "space = ?")
			args = append(args, value)
		case field == "title" && op == "~":
			clauses = append(clauses, "title LIKE ?")
			args = append(args, "%"+value+"%")
		case field == "text" && op == "~":
			clauses = append(clauses, "(title LIKE ? OR body LIKE ?)")
			args = append(args, "%"+value+"%", "%"+value+"%")
		default:
			return "", nil, fmt.Errorf("unsupported cql operator %q for field %q", op, field)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

// SearchPages runs a CQL query with offset/limit paging and returns
// the page slice plus the total match count.
func (s *Store) SearchPages(ctx context.Context, cql string, start, limit int) ([]*Page, int, error) {
	where, args, err := cqlToSQL(cql)
	if err != nil {
		return nil, 0, err
	}
	s.logger.Debug("sql", "op", "search", "table", "pages", "cql", cql, "start", start, "limit", limit)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, space, title, body, created_at FROM pages WHERE `+where+
			` ORDER BY created_at, id LIMIT ? OFFSET ?`,
		append(append([]any{}, args...), limit, start)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		var p Page
		var created string
		if err := rows.Scan(&p.ID, &p.Type, &p.Space, &p.Title, &p.Body, &created); err != nil {
			return nil, 0, err
		}
		p.Created, _ = time.Parse(time.RFC3339Nano, created)
		pages = append(pages, &p)
	}
	return pages, total, rows.Err()
}

// Seed fills the store with n sample pages spread across the given
// spaces. Titles are stable ("Page 0" .. "Page n-1") so tests can
// assert ordering.
func (s *Store) Seed(ctx context.Context, n int, spaces ...string) error {
	if len(spaces) == 0 {
		spaces = []string{"DEV", "OPS"}
	}
	base := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		p := &Page{
			Type:    "page",
			Space:   spaces[i%len(spaces)],
			Title:   fmt.Sprintf("Page %d", i),
			Body:    fmt.Sprintf("Body of sample page %d.", i),
			Created: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.CreatePage(ctx, p); err != nil {
			return fmt.Errorf("seed page %d: %w", i, err)
		}
	}
	return nil
}
