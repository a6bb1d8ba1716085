package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
)

var (
	sqlInsert = insertSQL(func(int) string { return "?" })
	sqlExists = existsSQL("?")
)

// SQLStore is a database/sql backed Store for SQLite files and libSQL (Turso) databases.
// Both treat the file or remote database itself as pokemon_db.
type SQLStore struct {
	db  *sql.DB
	log *logging.Logger
}

// OpenSQLite opens (creating if needed) a local SQLite database file
func OpenSQLite(ctx context.Context, path string, log *logging.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// one writer; keeps the batch transaction and its savepoints on one connection
	db.SetMaxOpenConns(1)

	s, err := newSQLStore(ctx, db, log.Component("SQLite"))
	if err != nil {
		return nil, err
	}
	s.log.Infof("Opened %s", path)
	return s, nil
}

// OpenLibSQL connects to a libSQL server such as Turso
func OpenLibSQL(ctx context.Context, url, authToken string, log *logging.Logger) (*SQLStore, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to libsql: %w", err)
	}

	s, err := newSQLStore(ctx, db, log.Component("LibSQL"))
	if err != nil {
		return nil, err
	}
	s.log.Infof("Connected to %s", url)
	return s, nil
}

func newSQLStore(ctx context.Context, db *sql.DB, log *logging.Logger) (*SQLStore, error) {
	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLStore{db: db, log: log}, nil
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", TableName, err)
	}
	return nil
}

func (s *SQLStore) BeginBatch(ctx context.Context) (Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlBatch{tx: tx}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Count returns the number of rows in the pokemon table
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+TableName).Scan(&n)
	return n, err
}

type sqlBatch struct {
	tx *sql.Tx
}

func (b *sqlBatch) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := b.tx.QueryRowContext(ctx, sqlExists, id).Scan(&exists)
	return exists, err
}

func (b *sqlBatch) Insert(ctx context.Context, rec normalize.Record) error {
	if _, err := b.tx.ExecContext(ctx, "SAVEPOINT row_insert"); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if _, err := b.tx.ExecContext(ctx, sqlInsert, insertArgs(rec)...); err != nil {
		b.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT row_insert")
		b.tx.ExecContext(ctx, "RELEASE SAVEPOINT row_insert")
		return err
	}
	_, err := b.tx.ExecContext(ctx, "RELEASE SAVEPOINT row_insert")
	return err
}

func (b *sqlBatch) Commit(context.Context) error {
	return b.tx.Commit()
}

func (b *sqlBatch) Rollback(context.Context) error {
	return b.tx.Rollback()
}
