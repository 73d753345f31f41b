// Package migrate applies embedded, forward-only SQL migrations to SQLite and
// PostgreSQL databases.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

// Dialect captures the SQL differences between supported engines.
type Dialect struct {
	Name string
	// RecordSQL inserts (name, applied_at) and ignores duplicates.
	RecordSQL string
	// LookupSQL selects 1 for a recorded migration name.
	LookupSQL string
}

// SQLite is the dialect for modernc.org/sqlite databases.
var SQLite = Dialect{
	Name:      "sqlite",
	RecordSQL: "INSERT OR IGNORE INTO " + migrationTable + " (name, applied_at) VALUES (?, ?)",
	LookupSQL: "SELECT 1 FROM " + migrationTable + " WHERE name = ?",
}

// Postgres is the dialect for lib/pq databases.
var Postgres = Dialect{
	Name:      "postgres",
	RecordSQL: "INSERT INTO " + migrationTable + " (name, applied_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING",
	LookupSQL: "SELECT 1 FROM " + migrationTable + " WHERE name = $1",
}

// Apply executes embedded migrations from root at most once per file, in
// lexical file order, each inside its own transaction.
func Apply(ctx context.Context, sqlDB *sql.DB, dialect Dialect, migrationFS fs.FS, root string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}
	if dialect.RecordSQL == "" || dialect.LookupSQL == "" {
		return fmt.Errorf("migration dialect is required")
	}

	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	keyRoot := root
	if keyRoot == "." {
		keyRoot = ""
	}

	files, err := listSQLFiles(migrationFS, root)
	if err != nil {
		return err
	}

	createSQL := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`
	if _, err := sqlDB.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		key := file
		if keyRoot != "" {
			key = path.Join(keyRoot, file)
		}
		if err := applyOne(ctx, sqlDB, dialect, migrationFS, path.Join(root, file), key); err != nil {
			return fmt.Errorf("migration %s: %w", file, err)
		}
	}
	return nil
}

func listSQLFiles(migrationFS fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyOne(ctx context.Context, sqlDB *sql.DB, dialect Dialect, migrationFS fs.FS, filePath, key string) error {
	applied, err := isApplied(ctx, sqlDB, dialect, key)
	if err != nil {
		return fmt.Errorf("check applied: %w", err)
	}
	if applied {
		return nil
	}

	content, err := fs.ReadFile(migrationFS, filePath)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	upSQL := ExtractUpMigration(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return nil
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, upSQL); err != nil && !IsAlreadyExistsError(err) {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.ExecContext(ctx, dialect.RecordSQL, key, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ExtractUpMigration returns the SQL in the -- +migrate Up section.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(ctx context.Context, sqlDB *sql.DB, dialect Dialect, name string) (bool, error) {
	var found int
	err := sqlDB.QueryRowContext(ctx, dialect.LookupSQL, name).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
