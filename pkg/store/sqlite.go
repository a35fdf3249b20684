package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var _ Store = &SQLiteStore{}

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at path and runs every .sql file found in
// the migrations directory, in name order.
func NewSQLiteStore(ctx context.Context, path string, migrations string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// sqlite serializes writers
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, migrations, func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db: db,
	}, nil
}

func (s *SQLiteStore) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	q := `
	SELECT value FROM kv WHERE key = ?;
	`
	var value string
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", &ErrNotFound{Key: key}
		}
		return "", fmt.Errorf("failed to scan value: %v", err)
	}

	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value string) error {
	q := `
	INSERT OR REPLACE INTO kv (key, value, updated_at)
	VALUES (?, ?, ?);
	`
	if _, err := s.db.ExecContext(ctx, q, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to set value: %v", err)
	}

	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	q := `
	DELETE FROM kv WHERE key = ?;
	`
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("failed to delete value: %v", err)
	}

	return nil
}

func runMigrations(ctx context.Context, migrations string, exec func(ctx context.Context, stmt string) error) error {
	dir, err := os.ReadDir(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}

	names := make([]string, 0, len(dir))
	for _, entry := range dir {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		migrationPath := filepath.Join(migrations, name)
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if err := exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return nil
}
