package store

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
)

// Open creates a durable store from a connection string. Supported schemes
// are memory://, sqlite://<path> and postgresql://. migrationsRoot holds one
// sub-directory of migrations per database engine.
func Open(ctx context.Context, connStr string, migrationsRoot string) (Store, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}

	switch u.Scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite connection string has no path: %s", connStr)
		}
		return NewSQLiteStore(ctx, path, filepath.Join(migrationsRoot, "sqlite"))
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, u.String(), filepath.Join(migrationsRoot, "postgres"))
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
