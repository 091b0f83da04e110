// Package tokenstore keeps node tokens in a small SQLite database, so
// documents are addressed by the same token between program runs.
package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"poet/toc"
)

const schema = `
CREATE TABLE IF NOT EXISTS tokens (
	key     TEXT PRIMARY KEY,
	token   TEXT NOT NULL UNIQUE,
	updated INTEGER NOT NULL
) STRICT;
`

// writes are serialized by SQLite anyway, two connections let a reader
// proceed while the other one is taken
const poolSize = 2

type Store struct {
	pool *sqlitex.Pool
	path string
	log  *zap.Logger
}

// Open opens (creating when necessary) token database at path.
func Open(path string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("unable to create token database directory: %w", err)
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open token database %s: %w", path, err)
	}

	log = log.Named("tokens")
	log.Debug("Token database opened", zap.String("path", path))
	return &Store{pool: pool, path: path, log: log}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("unable to prepare schema: %w", err)
	}
	return nil
}

// Token returns token previously saved under key.
func (s *Store) Token(ctx context.Context, key string) (toc.Token, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", false, err
	}
	defer s.pool.Put(conn)

	var (
		token toc.Token
		found bool
	)
	err = sqlitex.Execute(conn, `SELECT token FROM tokens WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			token, found = stmt.ColumnText(0), true
			return nil
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("unable to read token for %q: %w", key, err)
	}
	return token, found, nil
}

// SaveToken stores token under key replacing previous one.
func (s *Store) SaveToken(ctx context.Context, key string, token toc.Token) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO tokens (key, token, updated) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET token = excluded.token, updated = excluded.updated`,
		&sqlitex.ExecOptions{Args: []any{key, token, time.Now().Unix()}})
	if err != nil {
		return fmt.Errorf("unable to save token for %q: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("unable to close token database %s: %w", s.path, err)
	}
	return nil
}
