// Package sqlite persists the problem read model served by the HTTP API.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/civic-problem-map/internal/domain"
	"github.com/couchcryptid/civic-problem-map/internal/observability"

	_ "modernc.org/sqlite"
)

// Fixed width keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS problems (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	raw_status     TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '[]',
	address        TEXT NOT NULL DEFAULT '',
	address_source TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	processed_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_problems_status ON problems(status);
CREATE INDEX IF NOT EXISTS idx_problems_category ON problems(category);
CREATE INDEX IF NOT EXISTS idx_problems_created ON problems(created_at, id);
`

const upsertSQL = `
INSERT INTO problems (id, title, description, status, raw_status, category, location, address, address_source, created_at, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	status = excluded.status,
	raw_status = excluded.raw_status,
	category = excluded.category,
	location = excluded.location,
	address = excluded.address,
	address_source = excluded.address_source,
	created_at = excluded.created_at,
	processed_at = excluded.processed_at`

const selectColumns = `id, title, description, status, raw_status, category, location, address, address_source, created_at, processed_at`

// Store is the SQLite-backed problem repository.
// It implements pipeline.BatchLoader and the HTTP API's problem source.
type Store struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// Open opens (creating when needed) the database at path and applies the
// schema.
func Open(path string, metrics *observability.Metrics) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, metrics: metrics}
	if err := s.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the problems table and its indexes if missing.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// LoadBatch applies upserts and deletions in one transaction, in order.
func (s *Store) LoadBatch(ctx context.Context, changes []domain.ProblemChange) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upserts, deletes := 0, 0
	for i := range changes {
		c := &changes[i]
		if c.Deleted {
			if _, err := tx.ExecContext(ctx, `DELETE FROM problems WHERE id = ?`, c.ID); err != nil {
				return fmt.Errorf("delete problem %s: %w", c.ID, err)
			}
			deletes++
			continue
		}
		if err := upsert(ctx, tx, c.Problem); err != nil {
			return err
		}
		upserts++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ProblemsLoaded.WithLabelValues("upsert").Add(float64(upserts))
		s.metrics.ProblemsLoaded.WithLabelValues("delete").Add(float64(deletes))
		if n, err := s.Count(ctx); err == nil {
			s.metrics.StoredProblems.Set(float64(n))
		}
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, p domain.ReportedProblem) error {
	location, err := json.Marshal(p.Location)
	if err != nil {
		return fmt.Errorf("encode location %s: %w", p.ID, err)
	}
	if p.Location == nil {
		location = []byte("[]")
	}
	_, err = tx.ExecContext(ctx, upsertSQL,
		p.ID, p.Title, p.Description, string(p.Status), p.RawStatus, p.Category,
		string(location), p.Address, p.AddressSource,
		formatTime(p.CreatedAt), formatTime(p.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert problem %s: %w", p.ID, err)
	}
	return nil
}

// List returns the problems matching filter ordered by creation time, then id.
func (s *Store) List(ctx context.Context, filter domain.ProblemFilter) ([]domain.ReportedProblem, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Category)))
	}

	q := "SELECT " + selectColumns + " FROM problems"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	problems := make([]domain.ReportedProblem, 0)
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	return problems, nil
}

// Get returns one problem by id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domain.ReportedProblem, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM problems WHERE id = ?", id)
	p, err := scanProblem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReportedProblem{}, domain.ErrNotFound
	}
	return p, err
}

// Count returns the number of stored problems.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM problems").Scan(&n); err != nil {
		return 0, fmt.Errorf("count problems: %w", err)
	}
	return n, nil
}

// CheckReadiness reports whether the database is reachable.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProblem(sc scanner) (domain.ReportedProblem, error) {
	var (
		p                  domain.ReportedProblem
		status, location   string
		created, processed string
	)
	err := sc.Scan(&p.ID, &p.Title, &p.Description, &status, &p.RawStatus, &p.Category,
		&location, &p.Address, &p.AddressSource, &created, &processed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan problem: %w", err)
	}

	p.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(location), &p.Location); err != nil {
		return p, fmt.Errorf("decode location %s: %w", p.ID, err)
	}
	if len(p.Location) == 0 {
		p.Location = nil
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, fmt.Errorf("parse created_at %s: %w", p.ID, err)
	}
	if p.ProcessedAt, err = parseTime(processed); err != nil {
		return p, fmt.Errorf("parse processed_at %s: %w", p.ID, err)
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
