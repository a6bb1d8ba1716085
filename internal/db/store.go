package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Brooksie12/pokemon-data-pipeline/internal/config"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/logging"
	"github.com/Brooksie12/pokemon-data-pipeline/internal/normalize"
)

const (
	DatabaseName = "pokemon_db"
	TableName    = "pokemon"
)

var (
	ErrConnect = errors.New("database connection failed")
	ErrSchema  = errors.New("database schema setup failed")
)

// Store is one open session against the target database
type Store interface {
	// EnsureSchema creates the database (where the backend has one) and the
	// pokemon table if they don't exist yet. Safe to call repeatedly.
	EnsureSchema(ctx context.Context) error
	BeginBatch(ctx context.Context) (Batch, error)
	Close() error
}

// Batch is a single transaction that rows are inserted into
type Batch interface {
	Exists(ctx context.Context, id int) (bool, error)
	// Insert adds one row. A failed insert leaves the rest of the batch usable.
	Insert(ctx context.Context, rec normalize.Record) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Opener opens a Store
type Opener func(ctx context.Context) (Store, error)

// NewOpener returns an Opener for the configured driver
func NewOpener(cfg config.DatabaseConfig, log *logging.Logger) Opener {
	return func(ctx context.Context) (Store, error) {
		switch cfg.Driver {
		case config.DriverPostgres:
			return OpenPostgres(ctx, cfg.URL, cfg.Password, log)
		case config.DriverSQLite:
			return OpenSQLite(ctx, SQLitePath(cfg.URL), log)
		case config.DriverLibSQL:
			return OpenLibSQL(ctx, cfg.URL, cfg.AuthToken, log)
		default:
			return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
		}
	}
}

// SQLitePath maps the configured database URL to a SQLite file.
// Anything that isn't a file path falls back to pokemon_db.db in the working directory.
func SQLitePath(url string) string {
	url = strings.TrimPrefix(url, "file:")
	if url == "" || strings.Contains(url, "://") {
		return DatabaseName + ".db"
	}
	return url
}

// columnTypes maps each normalize.Columns entry to its SQL type
var columnTypes = map[string]string{
	"id":        "INTEGER PRIMARY KEY",
	"name":      "VARCHAR(50)",
	"height":    "INTEGER",
	"weight":    "INTEGER",
	"type_1":    "VARCHAR(20)",
	"type_2":    "VARCHAR(20)",
	"ability_1": "VARCHAR(30)",
	"ability_2": "VARCHAR(30)",
	"ability_3": "VARCHAR(30)",
	"HP":        "INTEGER",
	"ATK":       "INTEGER",
	"DEF":       "INTEGER",
	"SP_ATK":    "INTEGER",
	"SP_DEF":    "INTEGER",
	"Speed":     "INTEGER",
}

func createTableSQL() string {
	defs := make([]string, len(normalize.Columns))
	for i, col := range normalize.Columns {
		defs[i] = col + " " + columnTypes[col]
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", TableName, strings.Join(defs, ",\n\t"))
}

// insertSQL builds the insert statement; placeholder renders the n-th (1-based) parameter
func insertSQL(placeholder func(n int) string) string {
	params := make([]string, len(normalize.Columns))
	for i := range params {
		params[i] = placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		TableName, strings.Join(normalize.Columns, ", "), strings.Join(params, ", "))
}

func existsSQL(placeholder string) string {
	return fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = %s)", TableName, placeholder)
}

// insertArgs returns the row in normalize.Columns order.
// Empty strings and missing stats become NULL.
func insertArgs(rec normalize.Record) []any {
	args := make([]any, 0, len(normalize.Columns))
	args = append(args, int64(rec.ID), nullString(rec.Name), int64(rec.Height), int64(rec.Weight))
	for _, t := range rec.Types {
		args = append(args, nullString(t))
	}
	for _, a := range rec.Abilities {
		args = append(args, nullString(a))
	}
	for _, s := range rec.Stats {
		if s == nil {
			args = append(args, nil)
			continue
		}
		args = append(args, int64(*s))
	}
	return args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
