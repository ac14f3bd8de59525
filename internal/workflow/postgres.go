package workflow

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"automation/pkg/logger"
)

// PostgresStore reads the workflows table.
type PostgresStore struct {
	db  *pgxpool.Pool
	log logger.Sugared
}

func NewPostgresStore(db *pgxpool.Pool, log logger.Sugared) *PostgresStore {
	return &PostgresStore{db: db, log: logger.Named(log, "store")}
}

// EnsureSchema creates the workflows table if it doesn't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS workflows (
			id SERIAL PRIMARY KEY,
			name VARCHAR(120) NOT NULL,
			description TEXT,
			is_active BOOLEAN NOT NULL DEFAULT true
		);
		CREATE UNIQUE INDEX IF NOT EXISTS workflows_name_idx ON workflows(name);
	`)
	if err != nil {
		return fmt.Errorf("ensure workflows schema: %w", err)
	}
	return nil
}

// SeedIfEmpty inserts the initial workflows into an empty table.
func (s *PostgresStore) SeedIfEmpty(ctx context.Context, seed []Workflow) error {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM workflows`).Scan(&n); err != nil {
		return fmt.Errorf("count workflows: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, w := range seed {
		if _, err := s.db.Exec(ctx,
			`INSERT INTO workflows (name, description, is_active) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			w.Name, w.Description, w.IsActive); err != nil {
			return fmt.Errorf("seed workflow %q: %w", w.Name, err)
		}
	}
	s.log.Infow("seeded workflows", "count", len(seed))
	return nil
}

func (s *PostgresStore) FindAll(ctx context.Context) ([]Workflow, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, description, is_active FROM workflows ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	out := []Workflow{}
	for rows.Next() {
		var w Workflow
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.IsActive); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Analytics runs the counts and the recent listing concurrently.
func (s *PostgresStore) Analytics(ctx context.Context) (Analytics, error) {
	var total, active int
	recent := []Summary{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.QueryRow(gctx, `
			SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active)
			FROM workflows
		`).Scan(&total, &active)
	})
	g.Go(func() error {
		rows, err := s.db.Query(gctx, `SELECT id, name, is_active FROM workflows ORDER BY id DESC LIMIT $1`, RecentLimit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var x Summary
			if err := rows.Scan(&x.ID, &x.Name, &x.IsActive); err != nil {
				return err
			}
			recent = append(recent, x)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, fmt.Errorf("workflow analytics: %w", err)
	}
	return Analytics{
		TotalWorkflows:    total,
		ActiveWorkflows:   active,
		InactiveWorkflows: total - active,
		ActivePercentage:  ActivePercentage(active, total),
		RecentWorkflows:   recent,
	}, nil
}
