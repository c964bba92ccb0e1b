package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSnapshot keeps each named snapshot as one row.
type PostgresSnapshot struct {
	pool *pgxpool.Pool
	key  string
}

func NewPostgresSnapshot(ctx context.Context, databaseURL, key string) (*PostgresSnapshot, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	if strings.TrimSpace(key) == "" {
		key = DefaultSnapshotKey
	}
	return &PostgresSnapshot{pool: pool, key: key}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_snapshots (
			snapshot_key TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresSnapshot) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM memory_snapshots WHERE snapshot_key=$1`,
		s.key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return payload, nil
}

func (s *PostgresSnapshot) Save(ctx context.Context, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memory_snapshots (snapshot_key, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (snapshot_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		s.key,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PostgresSnapshot) Close() error {
	s.pool.Close()
	return nil
}

var _ Snapshotter = (*PostgresSnapshot)(nil)
