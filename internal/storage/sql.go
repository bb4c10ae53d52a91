package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// openDirect dials a Postgres DSN with a bounded connect timeout and runs a
// trivial liveness query before handing the pool back.
func openDirect(ctx context.Context, dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// openEmbedded opens the local SQLite database, degrading to an in-memory
// store when the file is unusable. It never fails: the embedded family is
// the safety net every probe terminates in.
func openEmbedded(path string, logger *zap.Logger) *sql.DB {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err == nil {
		err = db.Ping()
	}
	if err != nil {
		logger.Warn("embedded database file unusable, using in-memory store",
			zap.String("path", path), zap.Error(err))
		db, _ = sql.Open("sqlite", ":memory:")
	}

	// A single pooled connection: in-memory databases are per-connection,
	// and SQLite allows one writer at a time anyway.
	db.SetMaxOpenConns(1)

	if err := initEmbeddedSchema(db); err != nil {
		logger.Error("embedded schema bootstrap failed", zap.Error(err))
	}
	return db
}

// initEmbeddedSchema creates the application tables. The managed service's
// schema is provisioned out of band; only the embedded family bootstraps
// itself.
func initEmbeddedSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS requirements (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			creator_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_requirements (
			user_id TEXT NOT NULL,
			requirement_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			joined_at TEXT NOT NULL,
			PRIMARY KEY (user_id, requirement_id)
		)`,
		`CREATE TABLE IF NOT EXISTS requirement_contents (
			id TEXT PRIMARY KEY,
			requirement_id TEXT NOT NULL,
			content_type TEXT NOT NULL,
			content_text TEXT,
			file_path TEXT,
			submitted_by TEXT NOT NULL,
			submitted_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS requirement_documents (
			id TEXT PRIMARY KEY,
			requirement_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			generated_at TEXT NOT NULL,
			artifact_path TEXT,
			UNIQUE (requirement_id, version)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites `?` placeholders to the `$N` style Postgres expects. The
// embedded driver takes `?` as written.
func rebind(method ConnectionMethod, query string) string {
	if method != MethodDirectSQL {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isConstraintViolation recognizes uniqueness and foreign-key failures from
// both SQL drivers.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violations.
		return strings.HasPrefix(pgErr.Code, "23")
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint") || strings.Contains(msg, "unique")
}
