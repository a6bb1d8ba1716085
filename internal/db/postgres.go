package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
)

var (
	pgInsert = insertSQL(func(n int) string { return "$" + strconv.Itoa(n) })
	pgExists = existsSQL("$1")
)

// PostgresStore talks to a PostgreSQL server over a single connection.
// It starts on whatever database the URL names and moves to pokemon_db in EnsureSchema.
type PostgresStore struct {
	conn   *pgx.Conn
	config *pgx.ConnConfig
	log    *logging.Logger
}

// OpenPostgres connects to the server. password, when set, overrides any password in url.
func OpenPostgres(ctx context.Context, url, password string, log *logging.Logger) (*PostgresStore, error) {
	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if password != "" {
		cfg.Password = password
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	// Test connection
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log = log.Component("Postgres")
	log.Infof("Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return &PostgresStore{conn: conn, config: cfg, log: log}, nil
}

// EnsureSchema creates pokemon_db if missing, switches the session to it and
// creates the pokemon table.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if err := s.ensureDatabase(ctx); err != nil {
		return err
	}

	if s.config.Database != DatabaseName {
		cfg := s.config.Copy()
		cfg.Database = DatabaseName
		conn, err := pgx.ConnectConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", DatabaseName, err)
		}
		s.conn.Close(ctx)
		s.conn, s.config = conn, cfg
		s.log.Infof("Switched to database %s", DatabaseName)
	}

	if _, err := s.conn.Exec(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", TableName, err)
	}
	return nil
}

func (s *PostgresStore) ensureDatabase(ctx context.Context) error {
	var exists bool
	err := s.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, DatabaseName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for database %s: %w", DatabaseName, err)
	}
	if exists {
		return nil
	}

	// CREATE DATABASE takes no bind parameters; the identifier is quoted instead
	if _, err := s.conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{DatabaseName}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create database %s: %w", DatabaseName, err)
	}
	s.log.Infof("Created database %s", DatabaseName)
	return nil
}

func (s *PostgresStore) BeginBatch(ctx context.Context) (Batch, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgBatch{tx: tx}, nil
}

func (s *PostgresStore) Close() error {
	return s.conn.Close(context.Background())
}

type pgBatch struct {
	tx pgx.Tx
}

// Exists and Insert each run inside a savepoint (pgx nested transaction) so a
// failed statement doesn't put the outer transaction into the aborted state.
func (b *pgBatch) Exists(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := inSavepoint(ctx, b.tx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx, pgExists, id).Scan(&exists)
	})
	return exists, err
}

func (b *pgBatch) Insert(ctx context.Context, rec normalize.Record) error {
	return inSavepoint(ctx, b.tx, func(sp pgx.Tx) error {
		_, err := sp.Exec(ctx, pgInsert, insertArgs(rec)...)
		return err
	})
}

// savepointBeginner is the part of pgx.Tx that opens a nested transaction
type savepointBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

func inSavepoint(ctx context.Context, tx savepointBeginner, fn func(sp pgx.Tx) error) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(sp); err != nil {
		sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func (b *pgBatch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *pgBatch) Rollback(ctx context.Context) error {
	return b.tx.Rollback(ctx)
}
