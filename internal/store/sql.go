package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Schema version tracking (sqlite only, via PRAGMA user_version):
// 0 - Initial schema (pre-migration)
// 1 - Added (foreign_id, id) index on record_refs
const currentSchemaVersion = 1

// SQL is a database/sql backend for sqlite3 and postgres.
//
// Records live in the records table; foreign keys in record_refs, which
// cascades on record deletion. Statements are built with squirrel so the
// same code serves both placeholder styles.
type SQL struct {
	db     *sql.DB
	driver string
	sq     squirrel.StatementBuilderType
}

// OpenSQL opens a sqlite3 database file or a postgres connection and
// applies the schema. It is idempotent.
//
// sqlite3 databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement, required for the record_refs cascade
func OpenSQL(driver, dsn string) (*SQL, error) {
	var placeholders squirrel.PlaceholderFormat
	switch driver {
	case "sqlite3":
		placeholders = squirrel.Question
	case "postgres":
		placeholders = squirrel.Dollar
	default:
		return nil, fmt.Errorf("store: unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite3" {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := applySchema(db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQL{
		db:     db,
		driver: driver,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(placeholders),
	}, nil
}

// Close closes the database connection.
func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *SQL) DB() *sql.DB {
	return s.db
}

func (s *SQL) Set(ctx context.Context, key string, rec Record) error {
	if err := validKey(key); err != nil {
		return err
	}
	rec = normalize(rec)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set %q: begin: %w", key, err)
	}
	defer tx.Rollback()

	upsert := s.sq.Insert("records").
		Columns("id", "data").
		Values(key, rec.Data).
		Suffix("ON CONFLICT (id) DO UPDATE SET data = excluded.data")
	if err := execBuilt(ctx, tx, upsert); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	if err := execBuilt(ctx, tx, s.sq.Delete("record_refs").Where(squirrel.Eq{"id": key})); err != nil {
		return fmt.Errorf("set %q: clear refs: %w", key, err)
	}
	if len(rec.ForeignKeys) > 0 {
		ins := s.sq.Insert("record_refs").Columns("id", "foreign_id")
		for _, f := range rec.ForeignKeys {
			ins = ins.Values(key, f)
		}
		if err := execBuilt(ctx, tx, ins); err != nil {
			return fmt.Errorf("set %q: refs: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set %q: commit: %w", key, err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) (Record, error) {
	q, args, err := s.sq.Select("data").From("records").Where(squirrel.Eq{"id": key}).ToSql()
	if err != nil {
		return Record{}, err
	}
	var rec Record
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&rec.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get %q: %w", key, err)
	}

	rec.ForeignKeys, err = s.column(ctx, s.sq.Select("foreign_id").From("record_refs").Where(squirrel.Eq{"id": key}))
	if err != nil {
		return Record{}, fmt.Errorf("get %q: refs: %w", key, err)
	}
	return normalize(rec), nil
}

func (s *SQL) Delete(ctx context.Context, key string) (bool, error) {
	q, args, err := s.sq.Delete("records").Where(squirrel.Eq{"id": key}).ToSql()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *SQL) References(ctx context.Context, foreign string) ([]string, error) {
	ids, err := s.column(ctx, s.sq.Select("id").From("record_refs").Where(squirrel.Eq{"foreign_id": foreign}))
	if err != nil {
		return nil, fmt.Errorf("references %q: %w", foreign, err)
	}
	// Database collations need not be bytewise.
	slices.Sort(ids)
	return ids, nil
}

// column runs a single-column string query.
func (s *SQL) column(ctx context.Context, b squirrel.SelectBuilder) ([]string, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func execBuilt(ctx context.Context, tx *sql.Tx, b sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, q, args...)
	return err
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB, driver string) error {
	name := "schema/sqlite.sql"
	if driver == "postgres" {
		name = "schema/postgres.sql"
	}
	schema, err := schemaFS.ReadFile(name)
	if err != nil {
		return err
	}
	if _, err := db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if driver != "sqlite3" {
		return nil
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the reverse-lookup index for databases created before
// it was part of the schema.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_record_refs_foreign
		ON record_refs(foreign_id, id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQL) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
