package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"archaeologist/internal/types"
)

// PostgresStore keeps plan records in a single table created on first use.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres opens dsn with the pgx driver and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS refactoring_plans (
  id TEXT PRIMARY KEY,
  repo TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  vulnerability_count INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refactoring_plans_repo ON refactoring_plans (repo);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, rec types.PlanRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO refactoring_plans (id, repo, title, vulnerability_count, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id)
DO UPDATE SET repo=EXCLUDED.repo,
  title=EXCLUDED.title,
  vulnerability_count=EXCLUDED.vulnerability_count,
  created_at=EXCLUDED.created_at`,
		rec.ID, rec.Repo, rec.Title, rec.VulnerabilityCount, rec.Timestamp)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (types.PlanRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.PlanRecord{}, fmt.Errorf("id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return types.PlanRecord{}, fmt.Errorf("ensure schema: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT id, repo, title, vulnerability_count, created_at
FROM refactoring_plans WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PlanRecord{}, ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) List(ctx context.Context, repo string) ([]types.PlanRecord, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, repo, title, vulnerability_count, created_at
FROM refactoring_plans WHERE ($1 = '' OR repo = $1) ORDER BY created_at, id`, repo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.PlanRecord, 0, 16)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (types.PlanRecord, error) {
	var rec types.PlanRecord
	err := row.Scan(&rec.ID, &rec.Repo, &rec.Title, &rec.VulnerabilityCount, &rec.Timestamp)
	return rec, err
}
