package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = &PostgresStore{}

type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and runs the migrations found in
// the migrations directory. The caller is responsible for calling Close().
func NewPostgresStore(ctx context.Context, connStr string, migrations string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	if err := runMigrations(ctx, migrations, func(ctx context.Context, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	}); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	q := `
	SELECT value FROM kv WHERE key = $1;
	`
	var value string
	if err := s.pool.QueryRow(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &ErrNotFound{Key: key}
		}
		return "", fmt.Errorf("failed to scan value: %v", err)
	}

	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value string) error {
	q := `
	INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3;
	`
	if _, err := s.pool.Exec(ctx, q, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to set value: %v", err)
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	q := `
	DELETE FROM kv WHERE key = $1;
	`
	if _, err := s.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("failed to delete value: %v", err)
	}

	return nil
}
